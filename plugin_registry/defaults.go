package plugin_registry

import (
	"context"
	"log/slog"

	"github.com/serisow/coalmind/config"
	"github.com/serisow/coalmind/services/embedding_service"
	"github.com/serisow/coalmind/services/llm_service"
)

const hashEmbeddingDim = 256

func llmOptions(cfg config.Config) llm_service.Options {
	return llm_service.Options{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxRetries:  cfg.LLMMaxRetries,
		RetryDelay:  cfg.LLMRetryDelay,
	}
}

// Default registers every built-in model and embedding provider.
func Default() *PluginRegistry {
	pr := NewPluginRegistry()

	pr.RegisterLLMProvider("gemini", func(ctx context.Context, cfg config.Config, logger *slog.Logger) (llm_service.LLMService, error) {
		return llm_service.NewGeminiService(ctx, cfg.GoogleAPIKey, llmOptions(cfg), logger)
	})
	pr.RegisterLLMProvider("openai", func(_ context.Context, cfg config.Config, logger *slog.Logger) (llm_service.LLMService, error) {
		return llm_service.NewOpenAIService(cfg.OpenAIAPIKey, "", llmOptions(cfg), logger)
	})
	pr.RegisterLLMProvider("anthropic", func(_ context.Context, cfg config.Config, logger *slog.Logger) (llm_service.LLMService, error) {
		return llm_service.NewAnthropicService(cfg.AnthropicAPIKey, llmOptions(cfg), logger)
	})

	pr.RegisterEmbedder("gemini", 768, func(ctx context.Context, cfg config.Config) (embedding_service.Embedder, error) {
		return embedding_service.NewGeminiEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
	})
	pr.RegisterEmbedder("openai", 1536, func(_ context.Context, cfg config.Config) (embedding_service.Embedder, error) {
		return embedding_service.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	})
	pr.RegisterEmbedder("hash", hashEmbeddingDim, func(context.Context, config.Config) (embedding_service.Embedder, error) {
		return embedding_service.NewHashEmbedder(hashEmbeddingDim), nil
	})
	return pr
}
