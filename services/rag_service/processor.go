package rag_service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/vector_store"
)

// persister is implemented by stores that live on disk between runs.
type persister interface {
	AddAndPersist(ctx context.Context, chunks []pipeline_type.DocumentChunk, path string) error
	BuildAndPersist(ctx context.Context, chunks []pipeline_type.DocumentChunk, path string) error
}

type Processor struct {
	store     vector_store.Store
	indexPath string
	splitter  Splitter
	extractor *DocumentExtractor
	logger    *slog.Logger
}

// NewProcessor ingests into store. indexPath is only used when the store
// persists to disk.
func NewProcessor(store vector_store.Store, indexPath string, splitter Splitter, logger *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		indexPath: indexPath,
		splitter:  splitter,
		extractor: NewDocumentExtractor(logger),
		logger:    logger,
	}
}

func (p *Processor) Extractor() *DocumentExtractor {
	return p.extractor
}

// Chunk extracts and splits one document without touching the store.
func (p *Processor) Chunk(sourceID string, content []byte) ([]pipeline_type.DocumentChunk, pipeline_type.DocType, string, error) {
	text, docType, err := p.extractor.Extract(sourceID, content)
	if err != nil {
		return nil, "", "", err
	}
	pieces := p.splitter.Split(text)
	chunks := make([]pipeline_type.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = pipeline_type.DocumentChunk{
			Text:     piece,
			SourceID: sourceID,
			DocType:  docType,
			Section:  fmt.Sprintf("%d/%d", i+1, len(pieces)),
		}
	}
	return chunks, docType, text, nil
}

// ProcessDocument adds one uploaded document to the store. Extraction
// problems are reported in the response; store failures are returned.
func (p *Processor) ProcessDocument(ctx context.Context, filename string, content []byte) (*pipeline_type.RAGResponse, error) {
	sourceID := filepath.Base(filename)
	metadata := pipeline_type.DocumentMetadata{}

	extractStart := time.Now()
	chunks, docType, text, err := p.Chunk(sourceID, content)
	if err != nil {
		p.logger.Error("Text extraction failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()))

		return &pipeline_type.RAGResponse{
			Message:  "Failed to extract text from document",
			SourceID: sourceID,
			Status:   "failed",
			Error:    err.Error(),
			Metadata: metadata,
		}, nil
	}

	metadata.ContentType = docType
	metadata.ProcessingStats.ExtractionTime = time.Since(extractStart).Seconds()
	metadata.WordCount = len(strings.Fields(text))
	metadata.ChunkCount = len(chunks)
	metadata.ContentPreview = preview(text, 250)

	embedStart := time.Now()
	if err := p.add(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", sourceID, err)
	}
	metadata.ProcessingStats.EmbeddingTime = time.Since(embedStart).Seconds()

	p.logger.Info("Document indexed",
		slog.String("source_id", sourceID),
		slog.Int("chunks", len(chunks)))

	return &pipeline_type.RAGResponse{
		Message:  "Document processed successfully",
		SourceID: sourceID,
		Status:   "indexed",
		Metadata: metadata,
	}, nil
}

// CollectChunks walks files and directories and chunks every supported file.
// Unsupported or unreadable files are logged and skipped.
func (p *Processor) CollectChunks(paths ...string) ([]pipeline_type.DocumentChunk, error) {
	var all []pipeline_type.DocumentChunk
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !Supported(path) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sourceID := filepath.Base(path)
			if rel, err := filepath.Rel(root, path); err == nil && rel != "." {
				sourceID = filepath.ToSlash(rel)
			}
			chunks, _, _, err := p.Chunk(sourceID, data)
			if err != nil {
				p.logger.Warn("Skipping document",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			all = append(all, chunks...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
	}
	return all, nil
}

// Ingest chunks the given paths and adds them to the store, or replaces the
// store's contents when rebuild is set. It returns the number of chunks.
func (p *Processor) Ingest(ctx context.Context, rebuild bool, paths ...string) (int, error) {
	chunks, err := p.CollectChunks(paths...)
	if err != nil {
		return 0, err
	}
	if rebuild {
		if ps, ok := p.store.(persister); ok && p.indexPath != "" {
			err = ps.BuildAndPersist(ctx, chunks, p.indexPath)
		} else {
			err = p.store.Build(ctx, chunks)
		}
	} else if len(chunks) > 0 {
		err = p.add(ctx, chunks)
	}
	if err != nil {
		return 0, err
	}
	p.logger.Info("Ingestion finished",
		slog.Int("chunks", len(chunks)),
		slog.Bool("rebuild", rebuild))
	return len(chunks), nil
}

func (p *Processor) IngestDirectory(ctx context.Context, dir string) (int, error) {
	return p.Ingest(ctx, false, dir)
}

func (p *Processor) add(ctx context.Context, chunks []pipeline_type.DocumentChunk) error {
	if ps, ok := p.store.(persister); ok && p.indexPath != "" {
		return ps.AddAndPersist(ctx, chunks, p.indexPath)
	}
	return p.store.Add(ctx, chunks)
}

func preview(text string, n int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
