package llm_service

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedService holds calls to the wrapped service to a token bucket
// shared by every pipeline using it.
type RateLimitedService struct {
	next    LLMService
	limiter *rate.Limiter
}

// NewRateLimitedService returns next unchanged when requestsPerSecond is not positive.
func NewRateLimitedService(next LLMService, requestsPerSecond float64, burst int) LLMService {
	if requestsPerSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedService{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (s *RateLimitedService) CallLLM(ctx context.Context, prompt string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return s.next.CallLLM(ctx, prompt)
}
