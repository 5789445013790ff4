package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/internal/config"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

// Provider names accepted in configuration.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// NewEmbedder builds an embedder from configuration. Offline forces
// the static provider regardless of configuration. The result is
// wrapped with an LRU cache.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, offline bool) (Embedder, error) {
	var embedder Embedder
	var err error

	provider := strings.ToLower(cfg.Provider)
	if offline {
		provider = ProviderStatic
	}

	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder()
	case ProviderOllama, "":
		embedder, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return nil, qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil).
			WithSuggestion("set embeddings.provider to \"ollama\" or \"static\"")
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(embedder, cfg.CacheSize), nil
}
