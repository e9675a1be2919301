package llm_service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIService struct {
	client openai.Client
	opts   Options
	logger *slog.Logger
}

func NewOpenAIService(apiKey, baseURL string, opts Options, logger *slog.Logger) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIService{
		client: openai.NewClient(reqOpts...),
		opts:   opts.withDefaults("gpt-4o-mini"),
		logger: logger,
	}, nil
}

func (s *OpenAIService) CallLLM(ctx context.Context, prompt string) (string, error) {
	return callWithRetry(ctx, s.logger, "openai", s.opts, func(ctx context.Context) (string, error) {
		return s.callOpenAI(ctx, prompt)
	})
}

func (s *OpenAIService) callOpenAI(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a helpful assistant."),
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(int64(s.opts.MaxTokens)),
	})
	if err != nil {
		return "", classifyError("openai", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}
