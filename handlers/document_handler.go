package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/vector_store"
)

const defaultMaxResults = 5

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, filename string, content []byte) (*pipeline_type.RAGResponse, error)
}

type SearchRequest struct {
	Query               string   `json:"query"`
	MaxResults          int      `json:"max_results"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

type SearchResult struct {
	SourceID        string  `json:"source_id"`
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
}

type SearchResponse struct {
	Documents []SearchResult `json:"documents"`
	Count     int            `json:"count"`
}

// DocumentHandler uploads documents into the knowledge base and searches it.
type DocumentHandler struct {
	processor DocumentProcessor
	retriever vector_store.Retriever
	logger    *slog.Logger
}

func NewDocumentHandler(processor DocumentProcessor, retriever vector_store.Retriever, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{processor: processor, retriever: retriever, logger: logger}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.logger.Error("Failed to parse multipart form", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.logger.Error("Failed to get file from form", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	h.logger.Info("Received file upload",
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	resp, err := h.processor.ProcessDocument(r.Context(), header.Filename, buf.Bytes())
	if err != nil {
		h.logger.Error("Failed to index document",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeRetrievalError(w, fmt.Errorf("indexing %s: %w", header.Filename, err))
		return
	}

	status := http.StatusOK
	if resp.Status == "failed" {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Error("Failed to decode request body", slog.String("error", err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}

	retrieved, err := h.retriever.Query(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		h.logger.Error("Failed to execute search query", slog.String("error", err.Error()))
		writeRetrievalError(w, err)
		return
	}

	results := make([]SearchResult, 0, len(retrieved))
	for _, c := range retrieved {
		if req.SimilarityThreshold != nil && c.Score < *req.SimilarityThreshold {
			continue
		}
		results = append(results, SearchResult{SourceID: c.SourceID, Content: c.Text, SimilarityScore: c.Score})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Documents: results, Count: len(results)})
}

// Welcome answers the root route.
func Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the CoalMind API"})
}
