package itembank

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
)

// MemoryRepository is an immutable, rank-indexed bank held in memory.
// It is safe for concurrent use.
type MemoryRepository struct {
	items  []Item // sorted by rank, then ID
	byID   map[string]int
	vector bool

	mu  sync.Mutex
	rng *rand.Rand
}

var (
	_ Repository     = (*MemoryRepository)(nil)
	_ EmbeddingStore = (*MemoryRepository)(nil)
	_ Lookuper       = (*MemoryRepository)(nil)
)

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithSeed makes sampling deterministic.
func WithSeed(seed uint64) MemoryOption {
	return func(m *MemoryRepository) {
		m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewMemory builds a repository from items. The items are validated and
// indexed once.
func NewMemory(items []Item, opts ...MemoryOption) (*MemoryRepository, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	sorted := slices.Clone(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].ID < sorted[j].ID
	})

	m := &MemoryRepository{
		items: sorted,
		byID:  make(map[string]int, len(sorted)),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for i := range m.items {
		m.byID[m.items[i].ID] = i
		if len(m.items[i].Embedding) > 0 {
			m.vector = true
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MustMemory is like NewMemory but panics on invalid input.
// Intended for tests and embedded seed data.
func MustMemory(items []Item, opts ...MemoryOption) *MemoryRepository {
	m, err := NewMemory(items, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Items returns all items ordered by rank.
func (m *MemoryRepository) Items() []Item {
	return slices.Clone(m.items)
}

func (m *MemoryRepository) Lookup(_ context.Context, id string) (*Item, error) {
	i, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", id, ErrItemNotFound)
	}
	it := m.items[i]
	return &it, nil
}

func (m *MemoryRepository) FindNearRank(_ context.Context, rank, window int) ([]Item, error) {
	if window < 0 {
		window = 0
	}
	lo := m.lowerBound(rank - window)
	var out []Item
	for i := lo; i < len(m.items) && m.items[i].Rank <= rank+window; i++ {
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *MemoryRepository) Nearest(_ context.Context, rank int) (*Item, error) {
	if len(m.items) == 0 {
		return nil, ErrItemNotFound
	}
	i := m.lowerBound(rank)
	switch {
	case i == 0:
		it := m.items[0]
		return &it, nil
	case i == len(m.items):
		it := m.items[len(m.items)-1]
		return &it, nil
	}
	below, above := m.items[i-1], m.items[i]
	if rank-below.Rank <= above.Rank-rank {
		return &below, nil
	}
	return &above, nil
}

func (m *MemoryRepository) Relationships(_ context.Context, itemID string, kind RelationKind) ([]Item, error) {
	i, ok := m.byID[itemID]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", itemID, ErrItemNotFound)
	}
	var out []Item
	for _, rel := range m.items[i].RelationsOf(kind) {
		if j, ok := m.byID[rel.TargetID]; ok {
			out = append(out, m.items[j])
		}
	}
	return out, nil
}

func (m *MemoryRepository) Sample(_ context.Context, q SampleQuery) ([]Item, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	var pool []int
	for i := range m.items {
		it := &m.items[i]
		if q.Exclude[it.ID] {
			continue
		}
		if abs(it.Rank-q.Center) < q.MinDistance {
			continue
		}
		pool = append(pool, i)
	}

	m.mu.Lock()
	m.rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
	m.mu.Unlock()

	n := min(q.Limit, len(pool))
	out := make([]Item, 0, n)
	for _, i := range pool[:n] {
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *MemoryRepository) Bounds(_ context.Context) (Bounds, error) {
	if len(m.items) == 0 {
		return Bounds{}, ErrItemNotFound
	}
	return Bounds{
		MinRank: m.items[0].Rank,
		MaxRank: m.items[len(m.items)-1].Rank,
		Count:   len(m.items),
	}, nil
}

func (m *MemoryRepository) Embedding(_ context.Context, itemID string) ([]float32, error) {
	i, ok := m.byID[itemID]
	if !ok {
		return nil, fmt.Errorf("item %q: %w", itemID, ErrItemNotFound)
	}
	return slices.Clone(m.items[i].Embedding), nil
}

func (m *MemoryRepository) HasEmbeddings() bool {
	return m.vector
}

// lowerBound returns the index of the first item with Rank >= rank.
func (m *MemoryRepository) lowerBound(rank int) int {
	return sort.Search(len(m.items), func(i int) bool {
		return m.items[i].Rank >= rank
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
