package itembank

// Stats summarizes a bank for operators.
type Stats struct {
	Items      int
	MinRank    int
	MaxRank    int
	Embedded   int
	Relations  map[RelationKind]int
	Isolated   int // items with no relations at all
	Dimensions int // embedding length, 0 when none or mixed
}

// ComputeStats walks items once.
func ComputeStats(items []Item) Stats {
	s := Stats{Items: len(items), Relations: make(map[RelationKind]int)}
	dims := -1
	for i, it := range items {
		if i == 0 || it.Rank < s.MinRank {
			s.MinRank = it.Rank
		}
		if it.Rank > s.MaxRank {
			s.MaxRank = it.Rank
		}
		if n := len(it.Embedding); n > 0 {
			s.Embedded++
			switch dims {
			case -1:
				dims = n
			case n:
			default:
				dims = 0
			}
		}
		if len(it.Relations) == 0 {
			s.Isolated++
		}
		for _, r := range it.Relations {
			s.Relations[r.Kind]++
		}
	}
	s.Dimensions = max(dims, 0)
	return s
}
