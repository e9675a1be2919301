package plugin_registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/serisow/coalmind/config"
	"github.com/serisow/coalmind/services/embedding_service"
	"github.com/serisow/coalmind/services/llm_service"
)

type LLMFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (llm_service.LLMService, error)

type EmbedderFactory func(ctx context.Context, cfg config.Config) (embedding_service.Embedder, error)

type embedderEntry struct {
	factory EmbedderFactory
	dim     int
}

// PluginRegistry maps provider names from configuration to constructors.
type PluginRegistry struct {
	llmProviders      map[string]LLMFactory
	embedderProviders map[string]embedderEntry
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		llmProviders:      make(map[string]LLMFactory),
		embedderProviders: make(map[string]embedderEntry),
	}
}

// RegisterLLMProvider registers a model provider
func (pr *PluginRegistry) RegisterLLMProvider(name string, factory LLMFactory) {
	pr.llmProviders[strings.ToLower(name)] = factory
}

// RegisterEmbedder registers an embedding provider producing vectors of dim.
func (pr *PluginRegistry) RegisterEmbedder(name string, dim int, factory EmbedderFactory) {
	pr.embedderProviders[strings.ToLower(name)] = embedderEntry{factory: factory, dim: dim}
}

// NewLLMService builds the named provider, rate limited when the
// configuration asks for it.
func (pr *PluginRegistry) NewLLMService(ctx context.Context, name string, cfg config.Config, logger *slog.Logger) (llm_service.LLMService, error) {
	factory, ok := pr.llmProviders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (available: %s)", name, strings.Join(pr.LLMProviders(), ", "))
	}
	svc, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.LLMRequestsPerSecond > 0 {
		svc = llm_service.NewRateLimitedService(svc, cfg.LLMRequestsPerSecond, cfg.LLMBurst)
	}
	return svc, nil
}

// NewEmbedder returns the named embedder and its vector dimension.
func (pr *PluginRegistry) NewEmbedder(ctx context.Context, name string, cfg config.Config) (embedding_service.Embedder, int, error) {
	entry, ok := pr.embedderProviders[strings.ToLower(name)]
	if !ok {
		return nil, 0, fmt.Errorf("unknown embedding provider: %s (available: %s)", name, strings.Join(pr.EmbedderProviders(), ", "))
	}
	emb, err := entry.factory(ctx, cfg)
	if err != nil {
		return nil, 0, err
	}
	return emb, entry.dim, nil
}

func (pr *PluginRegistry) LLMProviders() []string {
	return sortedKeys(pr.llmProviders)
}

func (pr *PluginRegistry) EmbedderProviders() []string {
	return sortedKeys(pr.embedderProviders)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
