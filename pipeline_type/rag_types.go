package pipeline_type

type ProcessingStats struct {
	ExtractionTime float64 `json:"extraction_time"`
	EmbeddingTime  float64 `json:"embedding_time"`
}

type DocumentMetadata struct {
	WordCount       int             `json:"word_count"`
	ChunkCount      int             `json:"chunk_count"`
	ContentPreview  string          `json:"content_preview"`
	ContentType     DocType         `json:"content_type"`
	ProcessingStats ProcessingStats `json:"processing_stats"`
}

type RAGResponse struct {
	Message  string           `json:"message"`
	SourceID string           `json:"source_id"`
	Metadata DocumentMetadata `json:"metadata"`
	Error    string           `json:"error,omitempty"`
	Status   string           `json:"status"`
}
