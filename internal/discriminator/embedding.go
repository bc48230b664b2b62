package discriminator

import (
	"context"
	"fmt"
	"math"

	"github.com/lexiworks/lexisurvey/internal/itembank"
)

const EmbeddingName = "embedding"

// EmbeddingChecker rejects candidates whose cosine similarity to the
// target exceeds the threshold. Pairs without usable vectors fall back to
// the lexical heuristic, as do pairs whose vectors cannot be fetched.
type EmbeddingChecker struct {
	store     itembank.EmbeddingStore
	threshold float64
	opts      Options
	fallback  *HeuristicChecker
}

// NewEmbeddingChecker creates an EmbeddingChecker over store.
func NewEmbeddingChecker(store itembank.EmbeddingStore, opts Options) *EmbeddingChecker {
	return &EmbeddingChecker{
		store:     store,
		threshold: opts.threshold(),
		opts:      opts,
		fallback:  NewHeuristicChecker(),
	}
}

func (*EmbeddingChecker) Name() string { return EmbeddingName }

func (c *EmbeddingChecker) IsValidTrap(ctx context.Context, candidate, target itembank.Item) (bool, error) {
	cv, err := c.vector(ctx, candidate)
	if err == nil {
		var tv []float32
		tv, err = c.vector(ctx, target)
		if err == nil {
			if sim, ok := Cosine(cv, tv); ok {
				return sim <= c.threshold, nil
			}
			c.opts.logger().DebugContext(ctx, "embedding missing, using lexical heuristic",
				"event", "similarity_fallback",
				"candidate", candidate.ID,
				"target", target.ID,
			)
			return c.fallbackCheck(ctx, candidate, target)
		}
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	c.opts.logger().WarnContext(ctx, "embedding lookup failed, using lexical heuristic",
		"event", "similarity_fallback",
		"candidate", candidate.ID,
		"target", target.ID,
		"error", err,
	)
	return c.fallbackCheck(ctx, candidate, target)
}

func (c *EmbeddingChecker) fallbackCheck(ctx context.Context, candidate, target itembank.Item) (bool, error) {
	if c.opts.OnFallback != nil {
		c.opts.OnFallback()
	}
	return c.fallback.IsValidTrap(ctx, candidate, target)
}

func (c *EmbeddingChecker) vector(ctx context.Context, it itembank.Item) ([]float32, error) {
	if len(it.Embedding) > 0 {
		return it.Embedding, nil
	}
	v, err := c.store.Embedding(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("embedding for %q: %w", it.ID, err)
	}
	return v, nil
}

// Cosine returns the cosine similarity of a and b. ok is false when either
// vector is empty or zero, or the dimensions differ.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
