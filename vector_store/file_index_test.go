package vector_store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/services/embedding_service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tableEmbedder returns fixed vectors for known texts.
type tableEmbedder struct {
	vectors map[string][]float32
	failOn  string
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if text == e.failOn {
			return nil, errors.New("quota exceeded")
		}
		v, ok := e.vectors[text]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", text)
		}
		out[i] = v
	}
	return out, nil
}

func chunks(texts ...string) []pipeline_type.DocumentChunk {
	out := make([]pipeline_type.DocumentChunk, len(texts))
	for i, text := range texts {
		out[i] = pipeline_type.DocumentChunk{Text: text, SourceID: fmt.Sprintf("doc-%d", i), DocType: pipeline_type.DocTypeText}
	}
	return out
}

func TestQueryOrdersByDescendingScore(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"q":    {1, 0},
		"far":  {0, 1},
		"mid":  {0.6, 0.8},
		"near": {0.99, 0.14},
		"same": {1, 0},
	}}
	ix := NewFileIndex(emb, discardLogger())
	if err := ix.Build(context.Background(), chunks("far", "mid", "near", "same")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ix.Query(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	want := []string{"same", "near", "mid"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("result %d = %q, want %q", i, got[i].Text, w)
		}
		if i > 0 && got[i].Score > got[i-1].Score {
			t.Errorf("result %d scored higher than result %d", i, i-1)
		}
	}
}

func TestQueryRoofFallScenario(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"roof fall":           {1, 0.2, 0},
		"roof fall procedure": {0.9, 0.3, 0.1},
		"gas leak procedure":  {0.5, 0.5, 0.2},
		"unrelated text":      {0, 0.1, 1},
	}}
	ix := NewFileIndex(emb, discardLogger())
	if err := ix.Build(context.Background(), chunks("roof fall procedure", "gas leak procedure", "unrelated text")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ix.Query(context.Background(), "roof fall", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 || got[0].Text != "roof fall procedure" || got[1].Text != "gas leak procedure" {
		t.Errorf("got %+v", got)
	}
}

// queryEmbedder maps queries to their own space, like backends with a
// separate retrieval-query task type.
type queryEmbedder struct {
	tableEmbedder
	queries map[string][]float32
}

func (e *queryEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v, ok := e.queries[text]
	if !ok {
		return nil, fmt.Errorf("no query vector for %q", text)
	}
	return v, nil
}

func TestQueryUsesQueryEmbedding(t *testing.T) {
	emb := &queryEmbedder{
		tableEmbedder: tableEmbedder{vectors: map[string][]float32{
			"methane": {1, 0}, "ventilation": {0, 1},
		}},
		queries: map[string][]float32{"gas": {0, 1}},
	}
	ix := NewFileIndex(emb, discardLogger())
	if err := ix.Build(context.Background(), chunks("methane", "ventilation")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := ix.Query(context.Background(), "gas", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Text != "ventilation" {
		t.Errorf("got %+v, want ventilation ranked by the query vector", got)
	}
}

func TestQueryScoreThreshold(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"q": {1, 0}, "a": {1, 0}, "b": {0, 1},
	}}
	ix := NewFileIndex(emb, discardLogger(), WithScoreThreshold(0.5))
	if err := ix.Build(context.Background(), chunks("a", "b")); err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := ix.Query(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Text != "a" {
		t.Errorf("got %+v, want only a", got)
	}
}

func TestNotLoadedErrors(t *testing.T) {
	ix := NewFileIndex(embedding_service.NewHashEmbedder(8), discardLogger())

	if _, err := ix.Query(context.Background(), "x", 1); !errors.Is(err, ErrIndexNotLoaded) {
		t.Errorf("Query err = %v, want ErrIndexNotLoaded", err)
	}
	if err := ix.Add(context.Background(), chunks("x")); !errors.Is(err, ErrIndexNotLoaded) {
		t.Errorf("Add err = %v, want ErrIndexNotLoaded", err)
	}
	if err := ix.Persist(filepath.Join(t.TempDir(), "idx")); !errors.Is(err, ErrIndexNotLoaded) {
		t.Errorf("Persist err = %v, want ErrIndexNotLoaded", err)
	}
}

func TestBuildFailureLeavesIndexUntouched(t *testing.T) {
	emb := &tableEmbedder{vectors: map[string][]float32{"a": {1, 0}, "b": {0, 1}, "q": {1, 0}}}
	ix := NewFileIndex(emb, discardLogger())
	if err := ix.Build(context.Background(), chunks("a")); err != nil {
		t.Fatalf("Build: %v", err)
	}

	emb.failOn = "b"
	err := ix.Build(context.Background(), chunks("a", "b"))
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("Build err = %v, want ErrEmbedding", err)
	}
	if ix.Len() != 1 {
		t.Errorf("Len = %d after failed build, want 1", ix.Len())
	}
}

func TestLoadMissingIndex(t *testing.T) {
	dir := t.TempDir()
	ix := NewFileIndex(embedding_service.NewHashEmbedder(8), discardLogger())

	if err := ix.Load(filepath.Join(dir, "nothing")); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Load err = %v, want ErrIndexNotFound", err)
	}

	// A vector file without its metadata sidecar is not an index.
	path := filepath.Join(dir, "half")
	builder := NewFileIndex(embedding_service.NewHashEmbedder(8), discardLogger())
	if err := builder.BuildAndPersist(context.Background(), chunks("a", "b"), path); err != nil {
		t.Fatalf("BuildAndPersist: %v", err)
	}
	if err := os.Remove(filepath.Join(path, chunksFileName)); err != nil {
		t.Fatal(err)
	}
	if err := ix.Load(path); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Load err = %v, want ErrIndexNotFound", err)
	}
	if ix.Loaded() {
		t.Error("index should not be loaded after a failed Load")
	}
}

func TestLoadRejectsCorruptVectorHeader(t *testing.T) {
	tests := []struct {
		name   string
		header vectorHeader
		trim   int
	}{
		{"huge count and dim", vectorHeader{Magic: vectorMagic, Version: codecVersion, Count: math.MaxUint32, Dim: math.MaxUint32}, 0},
		{"zero dim", vectorHeader{Magic: vectorMagic, Version: codecVersion, Count: 1, Dim: 0}, 0},
		{"count too large", vectorHeader{Magic: vectorMagic, Version: codecVersion, Count: 2, Dim: 8}, 0},
		{"truncated body", vectorHeader{Magic: vectorMagic, Version: codecVersion, Count: 1, Dim: 8}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index")
			emb := embedding_service.NewHashEmbedder(8)
			if err := NewFileIndex(emb, discardLogger()).BuildAndPersist(context.Background(), chunks("roof bolting"), path); err != nil {
				t.Fatalf("BuildAndPersist: %v", err)
			}

			vecPath := filepath.Join(path, vectorFileName)
			data, err := os.ReadFile(vecPath)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := binary.Write(&buf, binary.LittleEndian, tt.header); err != nil {
				t.Fatal(err)
			}
			data = append(buf.Bytes(), data[vectorHeaderSize:len(data)-tt.trim]...)
			if err := os.WriteFile(vecPath, data, 0644); err != nil {
				t.Fatal(err)
			}

			ix := NewFileIndex(emb, discardLogger())
			if err := ix.Load(path); !errors.Is(err, ErrIndexNotFound) {
				t.Errorf("Load err = %v, want ErrIndexNotFound", err)
			}
			if ix.Loaded() {
				t.Error("index should not be loaded from a corrupt file")
			}
		})
	}
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	emb := embedding_service.NewHashEmbedder(64)

	ix := NewFileIndex(emb, discardLogger())
	if err := ix.BuildAndPersist(context.Background(), chunks("roof bolting", "conveyor guarding"), path); err != nil {
		t.Fatalf("BuildAndPersist: %v", err)
	}
	if err := ix.AddAndPersist(context.Background(), chunks("dust suppression"), path); err != nil {
		t.Fatalf("AddAndPersist: %v", err)
	}

	loaded := NewFileIndex(emb, discardLogger())
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("Len = %d, want 3", loaded.Len())
	}

	want, _ := ix.Query(context.Background(), "roof", 3)
	got, _ := loaded.Query(context.Background(), "roof", 3)
	for i := range want {
		if got[i].Text != want[i].Text || got[i].Score != want[i].Score {
			t.Errorf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPersistCrashKeepsPreviousIndex(t *testing.T) {
	for _, stage := range []string{"written", "swapping"} {
		t.Run(stage, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index")
			emb := embedding_service.NewHashEmbedder(64)

			ix := NewFileIndex(emb, discardLogger())
			if err := ix.BuildAndPersist(context.Background(), chunks("original chunk"), path); err != nil {
				t.Fatalf("BuildAndPersist: %v", err)
			}
			before, err := os.ReadFile(filepath.Join(path, chunksFileName))
			if err != nil {
				t.Fatal(err)
			}

			crash := errors.New("simulated crash")
			ix.beforeSwap = func(s string) error {
				if s == stage {
					return crash
				}
				return nil
			}
			if err := ix.Add(context.Background(), chunks("new chunk")); err != nil {
				t.Fatalf("Add: %v", err)
			}
			if err := ix.Persist(path); !errors.Is(err, crash) {
				t.Fatalf("Persist err = %v, want simulated crash", err)
			}

			restarted := NewFileIndex(emb, discardLogger())
			if err := restarted.Load(path); err != nil {
				t.Fatalf("Load after crash: %v", err)
			}
			if restarted.Len() != 1 {
				t.Errorf("Len = %d, want 1", restarted.Len())
			}
			after, err := os.ReadFile(filepath.Join(path, chunksFileName))
			if err != nil {
				t.Fatal(err)
			}
			if string(after) != string(before) {
				t.Error("chunk metadata changed after crashed persist")
			}
			if leftovers, _ := filepath.Glob(path + ".tmp-*"); len(leftovers) != 0 {
				t.Errorf("temp dirs left behind: %v", leftovers)
			}
		})
	}
}

func TestConcurrentAddAndPersistKeepsAllChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	emb := embedding_service.NewHashEmbedder(32)
	ix := NewFileIndex(emb, discardLogger())
	if err := ix.BuildAndPersist(context.Background(), nil, path); err != nil {
		t.Fatalf("BuildAndPersist: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := ix.AddAndPersist(context.Background(), chunks(fmt.Sprintf("chunk %d", i)), path); err != nil {
				t.Errorf("AddAndPersist: %v", err)
			}
		}(i)
	}
	wg.Wait()

	loaded := NewFileIndex(emb, discardLogger())
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 8 {
		t.Errorf("Len = %d, want 8", loaded.Len())
	}
}
