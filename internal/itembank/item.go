package itembank

// RelationKind names a typed edge between two vocabulary items.
type RelationKind string

const (
	RelationOpposite RelationKind = "opposite"
	RelationRelated  RelationKind = "related"
	RelationConfused RelationKind = "confused"
)

// AllRelationKinds returns the relation kinds in their canonical order.
func AllRelationKinds() []RelationKind {
	return []RelationKind{RelationOpposite, RelationRelated, RelationConfused}
}

// Valid reports whether k is a known relation kind.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationOpposite, RelationRelated, RelationConfused:
		return true
	}
	return false
}

// Relation is an outgoing edge from an item to another item.
type Relation struct {
	Kind     RelationKind `json:"kind" bson:"kind"`
	TargetID string       `json:"target_id" bson:"target_id"`

	// Reason is free text explaining the relationship, e.g. why two
	// words are commonly confused.
	Reason string `json:"reason,omitempty" bson:"reason,omitempty"`
}

// Item is a single vocabulary unit.
type Item struct {
	// ID uniquely identifies the item within a bank.
	ID string `json:"id" bson:"_id"`

	// Word is the headword shown as the question prompt.
	Word string `json:"word" bson:"word"`

	// Gloss is the meaning shown as an answer option.
	Gloss string `json:"gloss" bson:"gloss"`

	// Rank is the frequency rank. Lower is more common.
	Rank int `json:"rank" bson:"rank"`

	Relations []Relation `json:"relations,omitempty" bson:"relations,omitempty"`

	// Embedding is an optional semantic vector, only used to validate
	// distractors.
	Embedding []float32 `json:"embedding,omitempty" bson:"embedding,omitempty"`
}

// RelationsOf returns the outgoing relations of the given kind.
func (it Item) RelationsOf(kind RelationKind) []Relation {
	var out []Relation
	for _, r := range it.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Bounds describes the rank domain covered by a repository.
type Bounds struct {
	MinRank int `json:"min_rank"`
	MaxRank int `json:"max_rank"`
	Count   int `json:"count"`
}

// Clamp limits rank to [MinRank, MaxRank]. The lower limit is never
// below 1.
func (b Bounds) Clamp(rank int) int {
	lo := max(b.MinRank, 1)
	if rank < lo {
		return lo
	}
	if b.MaxRank > 0 && rank > b.MaxRank {
		return b.MaxRank
	}
	return rank
}
