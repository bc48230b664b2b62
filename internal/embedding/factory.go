package embedding

import (
	"context"
	"fmt"
	"log/slog"
)

// NewEmbedder creates an Embedder from configuration, wrapped with retry
// and logging middleware. It returns nil, nil when embeddings are disabled.
func NewEmbedder(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	var base Embedder
	var err error

	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		base, err = NewOpenAIEmbedder(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiEmbedder(ctx, cfg.Gemini)
	case "mock":
		return NewMockEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedder: %w", cfg.Provider, err)
	}

	// caller → timeout → retry → logging → base
	logged := WithLogging(base, logger)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout), nil
}
