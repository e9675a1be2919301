package execution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockTimeProvider struct {
	currentTime time.Time
	mutex       sync.Mutex
}

func (mtp *mockTimeProvider) Now() time.Time {
	mtp.mutex.Lock()
	defer mtp.mutex.Unlock()
	return mtp.currentTime
}

func (mtp *mockTimeProvider) Add(d time.Duration) {
	mtp.mutex.Lock()
	mtp.currentTime = mtp.currentTime.Add(d)
	mtp.mutex.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitLifecycle(t *testing.T) {
	store := NewStore(discardLogger())
	release := make(chan struct{})

	ok := store.Submit(context.Background(), "hazard_analysis", "Blasting", func(ctx context.Context) (any, error) {
		<-release
		return map[string]any{"status": "success"}, nil
	})
	bad := store.Submit(context.Background(), "hazard_analysis", "x", func(ctx context.Context) (any, error) {
		return nil, errors.New("model unavailable")
	})

	exec, found := store.Get(ok)
	if !found || exec.Status != StatusStarted || exec.Input != "Blasting" {
		t.Fatalf("got %+v, %v", exec, found)
	}

	close(release)
	store.Wait()

	exec, _ = store.Get(ok)
	if exec.Status != StatusCompleted || exec.CompletedAt == "" {
		t.Errorf("completed execution = %+v", exec)
	}
	if exec.Result.(map[string]any)["status"] != "success" {
		t.Errorf("result = %v", exec.Result)
	}

	exec, _ = store.Get(bad)
	if exec.Status != StatusFailed || exec.ErrorMessage != "model unavailable" {
		t.Errorf("failed execution = %+v", exec)
	}

	if _, found := store.Get("unknown"); found {
		t.Error("unknown id found")
	}
}

func TestSubmitDetachesFromRequestContext(t *testing.T) {
	store := NewStore(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	id := store.Submit(ctx, "form", "", func(ctx context.Context) (any, error) {
		return nil, ctx.Err()
	})
	cancel()
	store.Wait()

	if exec, _ := store.Get(id); exec.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", exec.Status)
	}
}

func TestCleanupKeepsRunningAndRecent(t *testing.T) {
	mtp := &mockTimeProvider{currentTime: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := NewStoreWithClock(mtp, discardLogger())
	threshold := 5 * time.Minute

	block := make(chan struct{})
	running := store.Submit(context.Background(), "slow", "", func(context.Context) (any, error) {
		<-block
		return nil, nil
	})
	old := store.Submit(context.Background(), "fast", "", func(context.Context) (any, error) { return 1, nil })
	// Wait for the fast one only.
	for {
		if e, _ := store.Get(old); e.Status != StatusStarted {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mtp.Add(threshold + time.Second)
	recent := store.Submit(context.Background(), "fast", "", func(context.Context) (any, error) { return 2, nil })
	for {
		if e, _ := store.Get(recent); e.Status != StatusStarted {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if removed := store.Cleanup(threshold); removed != 1 {
		t.Errorf("removed %d, want 1", removed)
	}
	if _, found := store.Get(old); found {
		t.Error("expired execution still present")
	}
	if _, found := store.Get(recent); !found {
		t.Error("recent execution removed")
	}
	if _, found := store.Get(running); !found {
		t.Error("running execution removed")
	}

	close(block)
	store.Wait()
}

func TestConcurrentSubmitAndCleanup(t *testing.T) {
	mtp := &mockTimeProvider{currentTime: time.Now()}
	store := NewStoreWithClock(mtp, discardLogger())
	threshold := 5 * time.Minute
	interval := 10 * time.Millisecond

	store.StartCleanup(threshold, interval)
	defer store.Stop()

	for i := 0; i < 10; i++ {
		mtp.Add(time.Minute)
		for j := 0; j < 50; j++ {
			store.Submit(context.Background(), "form", "", func(context.Context) (any, error) { return j, nil })
		}
		time.Sleep(2 * time.Millisecond)
	}
	store.Wait()

	mtp.Add(threshold + time.Second)
	store.Cleanup(threshold)

	store.mu.RLock()
	defer store.mu.RUnlock()
	if n := len(store.executions); n != 0 {
		t.Errorf("%d executions left after expiry", n)
	}
}
