package llm_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicService struct {
	client anthropic.Client
	opts   Options
	logger *slog.Logger
}

func NewAnthropicService(apiKey string, opts Options, logger *slog.Logger) (*AnthropicService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
	}
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		opts:   opts.withDefaults("claude-3-5-sonnet-latest"),
		logger: logger,
	}, nil
}

func (s *AnthropicService) CallLLM(ctx context.Context, prompt string) (string, error) {
	return callWithRetry(ctx, s.logger, "anthropic", s.opts, func(ctx context.Context) (string, error) {
		return s.callAnthropic(ctx, prompt)
	})
}

func (s *AnthropicService) callAnthropic(ctx context.Context, prompt string) (string, error) {
	msg, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.opts.Model),
		MaxTokens:   int64(s.opts.MaxTokens),
		Temperature: anthropic.Float(s.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyError("anthropic", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in Anthropic response")
	}
	return b.String(), nil
}
