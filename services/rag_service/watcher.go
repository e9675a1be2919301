package rag_service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/serisow/coalmind/pipeline_type"
)

const DefaultDebounce = 2 * time.Second

// Watcher ingests documents created or rewritten in a directory. Events for
// the same file are coalesced until the directory has been quiet for the
// debounce period.
type Watcher struct {
	processor *Processor
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger

	// OnIngest, when set, is called after each file is processed.
	OnIngest func(path string, resp *pipeline_type.RAGResponse, err error)
}

func NewWatcher(processor *Processor, dir string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{processor: processor, fsw: fsw, debounce: debounce, logger: logger}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !Supported(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))
		case <-timer.C:
			for path := range pending {
				w.ingest(ctx, path)
			}
			clear(pending)
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	var resp *pipeline_type.RAGResponse
	if err == nil {
		resp, err = w.processor.ProcessDocument(ctx, path, data)
	}
	if err != nil {
		w.logger.Error("Failed to ingest watched file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	if w.OnIngest != nil {
		w.OnIngest(path, resp, err)
	}
}
