package vector_store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/services/embedding_service"
)

// FileIndex is an in-memory cosine index persisted as a directory holding
// index.vec and chunks.json. Queries take a read lock only.
type FileIndex struct {
	embedder  embedding_service.Embedder
	logger    *slog.Logger
	threshold *float64

	mu      sync.RWMutex
	loaded  bool
	dim     int
	chunks  []pipeline_type.DocumentChunk
	vectors [][]float32

	// beforeSwap runs at each persist stage; an error aborts the persist
	// as if the process had died there.
	beforeSwap func(stage string) error
}

type Option func(*FileIndex)

// WithScoreThreshold drops query results scoring below min.
func WithScoreThreshold(min float64) Option {
	return func(ix *FileIndex) {
		ix.threshold = &min
	}
}

func NewFileIndex(embedder embedding_service.Embedder, logger *slog.Logger, opts ...Option) *FileIndex {
	ix := &FileIndex{
		embedder: embedder,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *FileIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

func (ix *FileIndex) Loaded() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.loaded
}

// Build embeds every chunk and replaces the index contents. On any embedding
// failure the index is left exactly as it was.
func (ix *FileIndex) Build(ctx context.Context, chunks []pipeline_type.DocumentChunk) error {
	vectors, dim, err := ix.embedChunks(ctx, chunks, 0)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.chunks = append([]pipeline_type.DocumentChunk(nil), chunks...)
	ix.vectors = vectors
	ix.dim = dim
	ix.loaded = true
	ix.mu.Unlock()

	ix.logger.Info("Vector index built", slog.Int("chunks", len(chunks)), slog.Int("dim", dim))
	return nil
}

// Add embeds chunks and appends them. Duplicates are kept.
func (ix *FileIndex) Add(ctx context.Context, chunks []pipeline_type.DocumentChunk) error {
	ix.mu.RLock()
	loaded, dim := ix.loaded, ix.dim
	ix.mu.RUnlock()
	if !loaded {
		return ErrIndexNotLoaded
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors, dim, err := ix.embedChunks(ctx, chunks, dim)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dim != 0 && ix.dim != dim {
		return fmt.Errorf("%w: %w: index has %d, got %d", ErrEmbedding, embedding_service.ErrDimensionMismatch, ix.dim, dim)
	}
	ix.dim = dim
	ix.chunks = append(ix.chunks, chunks...)
	ix.vectors = append(ix.vectors, vectors...)

	ix.logger.Debug("Chunks added to vector index", slog.Int("added", len(chunks)), slog.Int("total", len(ix.chunks)))
	return nil
}

// Query returns at most k chunks ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (ix *FileIndex) Query(ctx context.Context, text string, k int) (pipeline_type.RetrievedContext, error) {
	ix.mu.RLock()
	loaded, size := ix.loaded, len(ix.chunks)
	ix.mu.RUnlock()
	if !loaded {
		return nil, ErrIndexNotLoaded
	}
	if k <= 0 || size == 0 {
		return pipeline_type.RetrievedContext{}, nil
	}

	query, err := embedding_service.EmbedQuery(ctx, ix.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}

	ix.mu.RLock()
	results := make(pipeline_type.RetrievedContext, 0, len(ix.chunks))
	for i, v := range ix.vectors {
		score := embedding_service.Cosine(query, v)
		if ix.threshold != nil && score < *ix.threshold {
			continue
		}
		results = append(results, pipeline_type.RetrievedChunk{
			Text:     ix.chunks[i].Text,
			SourceID: ix.chunks[i].SourceID,
			Score:    score,
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (ix *FileIndex) embedChunks(ctx context.Context, chunks []pipeline_type.DocumentChunk, wantDim int) ([][]float32, int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, 0, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbedding, len(vectors), len(chunks))
	}

	dim := wantDim
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, 0, fmt.Errorf("%w: chunk %d produced an empty vector", ErrEmbedding, i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, 0, fmt.Errorf("%w: %w: chunk %d has %d, want %d", ErrEmbedding, embedding_service.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, dim, nil
}

// Load replaces the index contents with the pair persisted at path.
func (ix *FileIndex) Load(path string) error {
	unlock := lockPath(path)
	defer unlock()

	if err := recoverInterruptedPersist(path); err != nil {
		ix.logger.Warn("Could not recover interrupted persist", slog.String("path", path), slog.String("error", err.Error()))
	}

	vecFile, err := os.Open(filepath.Join(path, vectorFileName))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, path, err)
	}
	defer vecFile.Close()
	info, err := vecFile.Stat()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, path, err)
	}
	vectors, dim, err := readVectors(vecFile, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, path, err)
	}

	chunkFile, err := os.Open(filepath.Join(path, chunksFileName))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, path, err)
	}
	defer chunkFile.Close()
	sidecar, err := readChunks(chunkFile)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrIndexNotFound, path, err)
	}

	if len(sidecar.Chunks) != len(vectors) {
		return fmt.Errorf("%w: %s: %d chunks but %d vectors", ErrIndexNotFound, path, len(sidecar.Chunks), len(vectors))
	}
	if sidecar.Dim != dim {
		return fmt.Errorf("%w: %s: metadata dim %d, vectors dim %d", ErrIndexNotFound, path, sidecar.Dim, dim)
	}

	ix.mu.Lock()
	ix.chunks = sidecar.Chunks
	ix.vectors = vectors
	ix.dim = dim
	ix.loaded = true
	ix.mu.Unlock()

	ix.logger.Info("Vector index loaded", slog.String("path", path), slog.Int("chunks", len(vectors)))
	return nil
}

// Persist writes the index to path atomically.
func (ix *FileIndex) Persist(path string) error {
	unlock := lockPath(path)
	defer unlock()
	return ix.persistLocked(path)
}

// AddAndPersist holds the path lock across the add and the write so that two
// writers sharing an index cannot drop each other's chunks.
func (ix *FileIndex) AddAndPersist(ctx context.Context, chunks []pipeline_type.DocumentChunk, path string) error {
	unlock := lockPath(path)
	defer unlock()

	if err := ix.Add(ctx, chunks); err != nil {
		return err
	}
	return ix.persistLocked(path)
}

// BuildAndPersist builds from chunks and writes the result. Nothing is
// written if the build fails.
func (ix *FileIndex) BuildAndPersist(ctx context.Context, chunks []pipeline_type.DocumentChunk, path string) error {
	unlock := lockPath(path)
	defer unlock()

	if err := ix.Build(ctx, chunks); err != nil {
		return err
	}
	return ix.persistLocked(path)
}

func (ix *FileIndex) persistLocked(path string) error {
	ix.mu.RLock()
	if !ix.loaded {
		ix.mu.RUnlock()
		return ErrIndexNotLoaded
	}
	chunks := append([]pipeline_type.DocumentChunk(nil), ix.chunks...)
	vectors := append([][]float32(nil), ix.vectors...)
	dim := ix.dim
	ix.mu.RUnlock()

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index parent dir: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%s", path, uuid.NewString())
	if err := writeIndexDir(tmp, chunks, vectors, dim); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := ix.stage("written"); err != nil {
		return err
	}

	backup := path + ".bak"
	hadPrevious := false
	if _, err := os.Stat(path); err == nil {
		hadPrevious = true
		if err := os.RemoveAll(backup); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("removing stale backup: %w", err)
		}
		if err := os.Rename(path, backup); err != nil {
			os.RemoveAll(tmp)
			return fmt.Errorf("moving current index aside: %w", err)
		}
	}
	if err := ix.stage("swapping"); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		if hadPrevious {
			os.Rename(backup, path)
		}
		os.RemoveAll(tmp)
		return fmt.Errorf("installing new index: %w", err)
	}
	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			ix.logger.Warn("Could not remove index backup", slog.String("path", backup), slog.String("error", err.Error()))
		}
	}

	ix.logger.Info("Vector index persisted", slog.String("path", path), slog.Int("chunks", len(chunks)))
	return nil
}

func (ix *FileIndex) stage(name string) error {
	if ix.beforeSwap == nil {
		return nil
	}
	return ix.beforeSwap(name)
}

func writeIndexDir(dir string, chunks []pipeline_type.DocumentChunk, vectors [][]float32, dim int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating temp index dir: %w", err)
	}

	if err := writeSynced(filepath.Join(dir, vectorFileName), func(f *os.File) error {
		return writeVectors(f, vectors, dim)
	}); err != nil {
		return err
	}
	return writeSynced(filepath.Join(dir, chunksFileName), func(f *os.File) error {
		return writeChunks(f, chunks, dim)
	})
}

func writeSynced(name string, write func(*os.File) error) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(name), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(name), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(name), err)
	}
	return f.Close()
}

// recoverInterruptedPersist restores path from path.bak when a persist died
// between moving the live index aside and installing the new one, and
// clears leftovers from any other interrupted persist.
func recoverInterruptedPersist(path string) error {
	path = filepath.Clean(path)
	backup := path + ".bak"

	if _, err := os.Stat(backup); err == nil {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.Rename(backup, path); err != nil {
				return fmt.Errorf("restoring backup: %w", err)
			}
		} else if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("removing stale backup: %w", err)
		}
	}

	leftovers, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		return err
	}
	for _, dir := range leftovers {
		os.RemoveAll(dir)
	}
	return nil
}

var pathLocks sync.Map

func lockPath(path string) func() {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	m, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
