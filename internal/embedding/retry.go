package embedding

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryEmbedder is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryEmbedder struct {
	inner  Embedder
	config RetryConfig
}

// WithRetry wraps an Embedder with retry logic.
func WithRetry(e Embedder, cfg RetryConfig) Embedder {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryEmbedder{inner: e, config: cfg}
}

func (r *RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := range r.config.MaxAttempts {
		vecs, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return nil, err
		}

		// Last attempt, no sleep.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		wait := r.backoff(attempt, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

func (r *RetryEmbedder) ModelID() string {
	return r.inner.ModelID()
}

// shouldRetry reports whether err is transient.
func shouldRetry(err error) bool {
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var bad *ErrBadResponse
	if errors.As(err, &bad) {
		return false
	}

	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return true
	}
	var unavail *ErrProviderUnavailable
	return errors.As(err, &unavail)
}

// backoff computes the wait duration for the given attempt.
func (r *RetryEmbedder) backoff(attempt int, err error) time.Duration {
	// Respect RetryAfter for rate limits.
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

type timeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// WithTimeout bounds each Embed call, retries included.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{inner: e, timeout: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Embed(ctx, texts)
}

func (t *timeoutEmbedder) ModelID() string {
	return t.inner.ModelID()
}
