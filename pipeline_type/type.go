package pipeline_type

import (
	"strings"
)

type DocType string

const (
	DocTypePDF   DocType = "pdf"
	DocTypeText  DocType = "txt"
	DocTypeTable DocType = "table"
)

func (d DocType) Valid() bool {
	switch d {
	case DocTypePDF, DocTypeText, DocTypeTable:
		return true
	}
	return false
}

// DocumentChunk is a bounded slice of a source document, the unit of
// indexing and retrieval. Chunks are never mutated once created.
type DocumentChunk struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	DocType  DocType `json:"doc_type"`
	Section  string  `json:"section,omitempty"`
}

type RetrievedChunk struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// RetrievedContext is ordered closest first.
type RetrievedContext []RetrievedChunk

// Bulleted renders one "- <text>" line per chunk, preserving order.
func (rc RetrievedContext) Bulleted() string {
	lines := make([]string, 0, len(rc))
	for _, c := range rc {
		lines = append(lines, "- "+strings.TrimSpace(c.Text))
	}
	return strings.Join(lines, "\n")
}

func (rc RetrievedContext) Sources() []string {
	seen := make(map[string]bool, len(rc))
	var out []string
	for _, c := range rc {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			out = append(out, c.SourceID)
		}
	}
	return out
}
