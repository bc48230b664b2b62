package itembank

import (
	"context"
	"errors"
)

var (
	// ErrItemNotFound is returned when the repository holds no item at
	// any rank. Callers treat it as fatal.
	ErrItemNotFound = errors.New("itembank: no items available")

	// ErrUnavailable marks transient failures reaching the backing store.
	// Wrapped errors satisfy errors.Is(err, ErrUnavailable) and are safe
	// to retry.
	ErrUnavailable = errors.New("itembank: repository unavailable")

	// ErrInvalidBank is returned when a bank file fails validation.
	ErrInvalidBank = errors.New("itembank: invalid bank")
)

// SampleQuery selects random items away from a centre rank.
type SampleQuery struct {
	// Center is the rank the sample must keep away from.
	Center int

	// MinDistance is the minimum |rank - Center| of sampled items.
	// Zero samples from the whole bank.
	MinDistance int

	// Limit caps the number of items returned.
	Limit int

	// Exclude lists item IDs that must not be returned.
	Exclude map[string]bool
}

// Repository is the read-only view of the knowledge graph that the
// assessment engine consumes. Implementations map these calls onto their
// own storage schema.
type Repository interface {
	// FindNearRank returns every item whose rank lies within
	// [rank-window, rank+window], ordered by rank. An empty result is not
	// an error.
	FindNearRank(ctx context.Context, rank, window int) ([]Item, error)

	// Nearest returns the item whose rank is closest to rank. Ties go to
	// the lower rank. Returns ErrItemNotFound when the repository is empty.
	Nearest(ctx context.Context, rank int) (*Item, error)

	// Relationships returns the targets of itemID's relations of the given
	// kind. Dangling targets are skipped.
	Relationships(ctx context.Context, itemID string, kind RelationKind) ([]Item, error)

	// Sample returns up to q.Limit random items matching q.
	Sample(ctx context.Context, q SampleQuery) ([]Item, error)

	// Bounds reports the rank domain. Returns ErrItemNotFound when the
	// repository is empty.
	Bounds(ctx context.Context) (Bounds, error)
}

// EmbeddingStore is implemented by repositories that can supply semantic
// vectors for their items.
type EmbeddingStore interface {
	// Embedding returns the vector for itemID, or nil when the item has
	// none.
	Embedding(ctx context.Context, itemID string) ([]float32, error)

	// HasEmbeddings reports whether vectors are available at all.
	HasEmbeddings() bool
}

// Lookuper is implemented by repositories that can fetch a single item by
// ID.
type Lookuper interface {
	Lookup(ctx context.Context, id string) (*Item, error)
}
