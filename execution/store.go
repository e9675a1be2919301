// Package execution tracks generation requests that run in the background
// and keeps their results until they expire.
package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Execution struct {
	ExecutionID  string `json:"execution_id"`
	Task         string `json:"task"`
	Status       Status `json:"status"`
	Input        string `json:"input,omitempty"`
	Result       any    `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	SubmittedAt  string `json:"submitted_at"`
	CompletedAt  string `json:"completed_at,omitempty"`

	completedAt time.Time
}

// Func runs one background task. A non-nil error marks the execution failed;
// result is kept either way.
type Func func(ctx context.Context) (result any, err error)

type Store struct {
	mu         sync.RWMutex
	executions map[string]*Execution
	clock      TimeProvider
	logger     *slog.Logger

	wg        sync.WaitGroup
	stopOnce  sync.Once
	stop      chan struct{}
	cleanupWG sync.WaitGroup
}

func NewStore(logger *slog.Logger) *Store {
	return NewStoreWithClock(realTimeProvider{}, logger)
}

func NewStoreWithClock(clock TimeProvider, logger *slog.Logger) *Store {
	return &Store{
		executions: make(map[string]*Execution),
		clock:      clock,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Submit records a started execution and runs fn in a new goroutine with a
// context detached from the caller's request.
func (s *Store) Submit(ctx context.Context, task, input string, fn Func) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.executions[id] = &Execution{
		ExecutionID: id,
		Task:        task,
		Status:      StatusStarted,
		Input:       input,
		SubmittedAt: s.clock.Now().UTC().Format(time.RFC3339),
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := fn(context.WithoutCancel(ctx))
		s.finish(id, result, err)
	}()
	return id
}

func (s *Store) finish(id string, result any, err error) {
	now := s.clock.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[id]
	if !ok {
		return
	}
	exec.Result = result
	exec.completedAt = now
	exec.CompletedAt = now.Format(time.RFC3339)
	if err != nil {
		exec.Status = StatusFailed
		exec.ErrorMessage = err.Error()
		s.logger.Error("Execution failed",
			slog.String("execution_id", id),
			slog.String("task", exec.Task),
			slog.String("error", err.Error()))
		return
	}
	exec.Status = StatusCompleted
	s.logger.Info("Execution completed",
		slog.String("execution_id", id),
		slog.String("task", exec.Task))
}

// Get returns a copy of the execution.
func (s *Store) Get(id string) (Execution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}

// Wait blocks until every submitted execution has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// StartCleanup drops finished executions older than threshold every interval
// until Stop is called.
func (s *Store) StartCleanup(threshold, interval time.Duration) {
	ticker := time.NewTicker(interval)
	s.cleanupWG.Add(1)
	go func() {
		defer s.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup(threshold)
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.cleanupWG.Wait()
}

// Cleanup removes finished executions that completed more than threshold ago.
// Running executions are never removed.
func (s *Store) Cleanup(threshold time.Duration) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, exec := range s.executions {
		if exec.Status == StatusStarted {
			continue
		}
		if now.Sub(exec.completedAt) > threshold {
			delete(s.executions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Expired executions removed", slog.Int("count", removed))
	}
	return removed
}
