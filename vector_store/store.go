package vector_store

import (
	"context"
	"errors"

	"github.com/serisow/coalmind/pipeline_type"
)

var (
	// ErrEmbedding wraps any failure to embed chunk or query text.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexNotFound means the path holds no valid index and chunk sidecar pair.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexNotLoaded is returned by Add and Query before Build or Load.
	ErrIndexNotLoaded = errors.New("index not loaded")
)

// Store is the retrieval side shared by the file index and the Postgres backend.
type Store interface {
	Build(ctx context.Context, chunks []pipeline_type.DocumentChunk) error
	Add(ctx context.Context, chunks []pipeline_type.DocumentChunk) error
	Query(ctx context.Context, text string, k int) (pipeline_type.RetrievedContext, error)
}

// Retriever is the narrow view used by generation pipelines.
type Retriever interface {
	Query(ctx context.Context, text string, k int) (pipeline_type.RetrievedContext, error)
}
