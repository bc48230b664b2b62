package discriminator

import (
	"context"
	"log/slog"

	"github.com/lexiworks/lexisurvey/internal/itembank"
)

// DefaultThreshold is the cosine similarity above which a candidate is
// rejected as too close to the target.
const DefaultThreshold = 0.6

// Checker validates distractors.
type Checker interface {
	// Name identifies the variant, e.g. for logs.
	Name() string

	// IsValidTrap reports whether candidate may be offered as a wrong
	// answer for target.
	IsValidTrap(ctx context.Context, candidate, target itembank.Item) (bool, error)
}

// Options configures checker selection.
type Options struct {
	// Threshold overrides DefaultThreshold when positive.
	Threshold float64

	Logger *slog.Logger

	// OnFallback is called whenever a pair is judged by the lexical
	// heuristic instead of embeddings.
	OnFallback func()
}

func (o Options) threshold() float64 {
	if o.Threshold > 0 {
		return o.Threshold
	}
	return DefaultThreshold
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// New picks the checker variant from the repository's capability: an
// EmbeddingChecker when repo stores vectors, the HeuristicChecker
// otherwise. The heuristic selection is logged because it is strictly
// weaker.
func New(repo itembank.Repository, opts Options) Checker {
	if es, ok := repo.(itembank.EmbeddingStore); ok && es.HasEmbeddings() {
		return NewEmbeddingChecker(es, opts)
	}
	opts.logger().Warn("embeddings unavailable, using lexical heuristic for distractor validation",
		"event", "similarity_fallback",
		"checker", HeuristicName,
	)
	if opts.OnFallback != nil {
		opts.OnFallback()
	}
	return NewHeuristicChecker()
}
