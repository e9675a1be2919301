package llm_service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCallWithRetry(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantErr   bool
		wantQuota bool
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "recovers after transient failures", failures: 2, failWith: transient, wantCalls: 3},
		{name: "gives up after max retries", failures: 5, failWith: transient, wantCalls: 3, wantErr: true},
		{name: "quota is not retried", failures: 5, failWith: &QuotaError{Provider: "openai", StatusCode: 429}, wantCalls: 1, wantErr: true, wantQuota: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			opts := Options{MaxRetries: 3, RetryDelay: 0}
			got, err := callWithRetry(context.Background(), discardLogger(), "test", opts, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.failWith
				}
				return "ok", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var quotaErr *QuotaError
			if errors.As(err, &quotaErr) != tt.wantQuota {
				t.Errorf("quota error = %v, want %v", err, tt.wantQuota)
			}
			if !tt.wantErr && got != "ok" {
				t.Errorf("got %q, want ok", got)
			}
		})
	}
}

func TestCallWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := Options{MaxRetries: 3, RetryDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		_, err := callWithRetry(ctx, discardLogger(), "test", opts, func(context.Context) (string, error) {
			calls++
			return "", errors.New("boom")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callWithRetry did not return after cancel")
	}
}

func TestRateLimitedServicePassesThrough(t *testing.T) {
	mock := &MockLLMService{CallLLMFunc: func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	}}
	svc := NewRateLimitedService(mock, 100, 2)

	for i := 0; i < 3; i++ {
		got, err := svc.CallLLM(context.Background(), "hi")
		if err != nil || got != "echo: hi" {
			t.Fatalf("CallLLM = %q, %v", got, err)
		}
	}
	if mock.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", mock.Calls())
	}

	if NewRateLimitedService(mock, 0, 1) != LLMService(mock) {
		t.Error("non-positive rate should return the wrapped service")
	}
}

func TestScriptedResponsesRepeatsLast(t *testing.T) {
	fn := ScriptedResponses("a", "b")
	var got []string
	for i := 0; i < 3; i++ {
		r, _ := fn(context.Background(), "")
		got = append(got, r)
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "b" {
		t.Errorf("got %v", got)
	}
}
