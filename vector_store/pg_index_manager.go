package vector_store

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
)

const chunkIndexName = "idx_document_chunks_embedding"

// PgIndexManager keeps the ivfflat index on document_chunks sized to the table.
type PgIndexManager struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgIndexManager(db *pgxpool.Pool, logger *slog.Logger) *PgIndexManager {
	return &PgIndexManager{db: db, logger: logger}
}

// optimalLists is sqrt(rows) with a floor of 100.
func optimalLists(count int) int {
	lists := int(math.Sqrt(float64(count)))
	if lists < 100 {
		lists = 100
	}
	return lists
}

// needsRebuild reports whether current differs from optimal by more than half.
func needsRebuild(current, optimal int) bool {
	return math.Abs(float64(current-optimal)) > float64(optimal)*0.5
}

func (im *PgIndexManager) CreateOrUpdateIndex(ctx context.Context) error {
	var count int
	if err := im.db.QueryRow(ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&count); err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	lists := optimalLists(count)

	if _, err := im.db.Exec(ctx, "DROP INDEX IF EXISTS "+chunkIndexName); err != nil {
		return fmt.Errorf("failed to drop existing index: %w", err)
	}

	createIndexSQL := fmt.Sprintf(`
		CREATE INDEX %s
		ON document_chunks
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)`, chunkIndexName, lists)
	if _, err := im.db.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	im.logger.Info("Vector index created/updated successfully",
		slog.Int("chunk_count", count),
		slog.Int("list_count", lists))
	return nil
}

func (im *PgIndexManager) ReindexIfNeeded(ctx context.Context) error {
	var currentLists int
	err := im.db.QueryRow(ctx, `
		SELECT split_part(reloptions[1]::text, '=', 2)::int
		FROM pg_class
		WHERE relname = $1 AND reloptions IS NOT NULL`, chunkIndexName).Scan(&currentLists)
	if err != nil {
		return im.CreateOrUpdateIndex(ctx)
	}

	var count int
	if err := im.db.QueryRow(ctx, "SELECT COUNT(*) FROM document_chunks").Scan(&count); err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	optimal := optimalLists(count)
	if needsRebuild(currentLists, optimal) {
		im.logger.Info("Rebuilding vector index due to significant size change",
			slog.Int("current_lists", currentLists),
			slog.Int("optimal_lists", optimal))
		return im.CreateOrUpdateIndex(ctx)
	}
	return nil
}
