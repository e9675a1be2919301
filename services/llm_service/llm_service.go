package llm_service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// LLMService sends a single prompt to a hosted language model and returns
// the raw text of its answer.
type LLMService interface {
	CallLLM(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	RetryDelay  time.Duration
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// callWithRetry retries transport failures up to opts.MaxRetries times.
// Quota errors and context cancellation are returned immediately.
func callWithRetry(ctx context.Context, logger *slog.Logger, provider string, opts Options, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		response, err := call(ctx)
		if err == nil {
			return response, nil
		}
		lastErr = err

		var quotaErr *QuotaError
		if errors.As(err, &quotaErr) {
			logger.Error("LLM quota exceeded",
				slog.String("provider", provider),
				slog.String("model", opts.Model),
				slog.Int("status_code", quotaErr.StatusCode),
				slog.String("error", quotaErr.Message))
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt == opts.MaxRetries {
			logger.Error("Error calling LLM after multiple attempts",
				slog.String("provider", provider),
				slog.Int("attempts", opts.MaxRetries),
				slog.String("error", err.Error()),
				slog.String("model", opts.Model))
			break
		}

		logger.Warn("Attempt failed, retrying",
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
			slog.Duration("retry_delay", opts.RetryDelay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	return "", fmt.Errorf("failed to call %s after %d attempts: %w", provider, opts.MaxRetries, lastErr)
}
