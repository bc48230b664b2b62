package embedding

import (
	"context"
	"log/slog"
	"time"
)

// LoggingEmbedder is a decorator that logs every embedding request.
type LoggingEmbedder struct {
	inner  Embedder
	logger *slog.Logger
}

// WithLogging wraps an Embedder with structured request logging.
func WithLogging(e Embedder, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEmbedder{inner: e, logger: logger}
}

func (l *LoggingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := l.inner.Embed(ctx, texts)

	attrs := []any{
		"event", "embedding_request",
		"model", l.inner.ModelID(),
		"texts", len(texts),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		l.logger.WarnContext(ctx, "embedding request failed", append(attrs, "error", err)...)
		return nil, err
	}
	l.logger.DebugContext(ctx, "embedding request", attrs...)
	return vecs, nil
}

func (l *LoggingEmbedder) ModelID() string {
	return l.inner.ModelID()
}
