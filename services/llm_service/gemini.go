package llm_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

type GeminiService struct {
	client *genai.Client
	opts   Options
	logger *slog.Logger
}

func NewGeminiService(ctx context.Context, apiKey string, opts Options, logger *slog.Logger) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for the gemini provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiService{
		client: client,
		opts:   opts.withDefaults("gemini-1.5-pro"),
		logger: logger,
	}, nil
}

func (s *GeminiService) CallLLM(ctx context.Context, prompt string) (string, error) {
	return callWithRetry(ctx, s.logger, "gemini", s.opts, func(ctx context.Context) (string, error) {
		return s.callGemini(ctx, prompt)
	})
}

func (s *GeminiService) callGemini(ctx context.Context, prompt string) (string, error) {
	temperature := float32(s.opts.Temperature)
	resp, err := s.client.Models.GenerateContent(ctx, s.opts.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(s.opts.MaxTokens),
	})
	if err != nil {
		return "", classifyError("gemini", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
