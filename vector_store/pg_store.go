package vector_store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/services/embedding_service"
)

// PgStore keeps chunks and their embeddings in the document_chunks table.
type PgStore struct {
	db        *pgxpool.Pool
	embedder  embedding_service.Embedder
	dim       int
	threshold *float64
	logger    *slog.Logger
}

func NewPgStore(db *pgxpool.Pool, embedder embedding_service.Embedder, dim int, threshold *float64, logger *slog.Logger) *PgStore {
	return &PgStore{
		db:        db,
		embedder:  embedder,
		dim:       dim,
		threshold: threshold,
		logger:    logger,
	}
}

func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS document_chunks (
			id         BIGSERIAL PRIMARY KEY,
			source_id  TEXT NOT NULL,
			doc_type   TEXT NOT NULL,
			section    TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim))
	if err != nil {
		return fmt.Errorf("failed to create document_chunks table: %w", err)
	}
	return nil
}

// Build replaces every stored chunk in one transaction. Embedding happens
// before the transaction opens, so an embedding failure changes nothing.
func (s *PgStore) Build(ctx context.Context, chunks []pipeline_type.DocumentChunk) error {
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE document_chunks"); err != nil {
		return fmt.Errorf("failed to truncate document_chunks: %w", err)
	}
	if err := insertChunks(ctx, tx, chunks, vectors); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}

	s.logger.Info("Postgres vector store rebuilt", slog.Int("chunks", len(chunks)))
	return nil
}

func (s *PgStore) Add(ctx context.Context, chunks []pipeline_type.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertChunks(ctx, tx, chunks, vectors); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Query(ctx context.Context, text string, k int) (pipeline_type.RetrievedContext, error) {
	if k <= 0 {
		return pipeline_type.RetrievedContext{}, nil
	}
	vec, err := embedding_service.EmbedQuery(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}
	embedding := pgvector.NewVector(vec)

	query := `
		SELECT content, source_id, 1 - (embedding <=> $1) AS similarity_score
		FROM document_chunks
		ORDER BY embedding <=> $1, id
		LIMIT $2`
	args := []interface{}{embedding, k}
	if s.threshold != nil {
		query = `
		SELECT content, source_id, similarity_score FROM (
			SELECT id, content, source_id, 1 - (embedding <=> $1) AS similarity_score
			FROM document_chunks
		) scored
		WHERE similarity_score >= $3
		ORDER BY similarity_score DESC, id
		LIMIT $2`
		args = append(args, *s.threshold)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	results := make(pipeline_type.RetrievedContext, 0, k)
	for rows.Next() {
		var c pipeline_type.RetrievedChunk
		if err := rows.Scan(&c.Text, &c.SourceID, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *PgStore) embed(ctx context.Context, chunks []pipeline_type.DocumentChunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return nil, fmt.Errorf("%w: %w: chunk %d has %d, column has %d", ErrEmbedding, embedding_service.ErrDimensionMismatch, i, len(v), s.dim)
		}
	}
	return vectors, nil
}

func insertChunks(ctx context.Context, tx pgx.Tx, chunks []pipeline_type.DocumentChunk, vectors [][]float32) error {
	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(`INSERT INTO document_chunks (source_id, doc_type, section, content, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			c.SourceID, string(c.DocType), c.Section, c.Text, pgvector.NewVector(vectors[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}
