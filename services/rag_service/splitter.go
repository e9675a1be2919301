package rag_service

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter cuts text into windows of at most ChunkSize runes, each sharing
// Overlap runes with the previous one.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return Splitter{ChunkSize: size, Overlap: overlap}
}

// Split prefers to end a window at whitespace found in its last fifth.
func (s Splitter) Split(text string) []string {
	s = NewSplitter(s.ChunkSize, s.Overlap)
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			floor := end - s.ChunkSize/5
			for i := end; i > floor && i > start+1; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}
