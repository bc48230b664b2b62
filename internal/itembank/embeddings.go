package itembank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Embedder turns texts into vectors. embedding.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ComputedEmbeddings decorates a repository with vectors computed on
// demand. Vectors stored with the item win over computed ones.
type ComputedEmbeddings struct {
	Repository

	lookup   Lookuper
	stored   EmbeddingStore
	embedder Embedder
	logger   *slog.Logger

	mu    sync.RWMutex
	cache map[string][]float32
	group singleflight.Group
}

var _ EmbeddingStore = (*ComputedEmbeddings)(nil)

// WithComputedEmbeddings wraps repo. The repository must implement
// Lookuper so the decorator can fetch the text to embed.
func WithComputedEmbeddings(repo Repository, embedder Embedder, logger *slog.Logger) (*ComputedEmbeddings, error) {
	lookup, ok := repo.(Lookuper)
	if !ok {
		return nil, fmt.Errorf("computed embeddings: %T cannot look up items by id", repo)
	}
	if embedder == nil {
		return nil, errors.New("computed embeddings: nil embedder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &ComputedEmbeddings{
		Repository: repo,
		lookup:     lookup,
		embedder:   embedder,
		logger:     logger,
		cache:      make(map[string][]float32),
	}
	if es, ok := repo.(EmbeddingStore); ok && es.HasEmbeddings() {
		c.stored = es
	}
	return c, nil
}

// EmbeddingText is the text embedded for an item.
func EmbeddingText(it Item) string {
	return it.Word + ": " + it.Gloss
}

func (c *ComputedEmbeddings) HasEmbeddings() bool { return true }

func (c *ComputedEmbeddings) Embedding(ctx context.Context, itemID string) ([]float32, error) {
	if c.stored != nil {
		vec, err := c.stored.Embedding(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if len(vec) > 0 {
			return vec, nil
		}
	}

	c.mu.RLock()
	vec, ok := c.cache[itemID]
	c.mu.RUnlock()
	if ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(itemID, func() (any, error) {
		it, err := c.lookup.Lookup(ctx, itemID)
		if err != nil {
			return nil, err
		}
		out, err := c.embedder.Embed(ctx, []string{EmbeddingText(*it)})
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", itemID, err)
		}
		if len(out) != 1 || len(out[0]) == 0 {
			return nil, fmt.Errorf("embed %q: empty vector", itemID)
		}
		c.mu.Lock()
		c.cache[itemID] = out[0]
		c.mu.Unlock()
		c.logger.Debug("embedding computed", "event", "embedding_computed", "item_id", itemID, "dims", len(out[0]))
		return out[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
