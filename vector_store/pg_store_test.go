package vector_store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serisow/coalmind/services/embedding_service"
)

func TestOptimalLists(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 100},
		{9999, 100},
		{40000, 200},
		{1000000, 1000},
	}
	for _, tt := range tests {
		if got := optimalLists(tt.count); got != tt.want {
			t.Errorf("optimalLists(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestNeedsRebuild(t *testing.T) {
	if needsRebuild(100, 120) {
		t.Error("100 -> 120 should not trigger a rebuild")
	}
	if !needsRebuild(100, 300) {
		t.Error("100 -> 300 should trigger a rebuild")
	}
}

func TestPgStoreBuildAndQuery(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		t.Fatalf("extension: %v", err)
	}

	store := NewPgStore(pool, embedding_service.NewHashEmbedder(64), 64, nil, discardLogger())
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := store.Build(ctx, chunks("roof fall procedure", "unrelated text")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := store.Query(ctx, "roof fall", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Text != "roof fall procedure" {
		t.Errorf("got %+v", got)
	}
}
