package embedder

import (
	"fmt"
	"strings"

	"github.com/semindex/semindex/internal/config"
)

// New creates an embedder from the loaded configuration. The device hint is
// not interpreted here; providers that execute locally receive it verbatim.
func New(cfg *config.Config) (Embedder, error) {
	cache := NewCache(10000)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama:
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model, cache), nil
	case ProviderOpenAI:
		return NewOpenAIProvider("", cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg.Model, cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
