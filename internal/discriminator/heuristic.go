package discriminator

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/lexiworks/lexisurvey/internal/itembank"
)

const HeuristicName = "heuristic"

// HeuristicChecker rejects a candidate only when its word is identical to
// the target's or a single edit away.
type HeuristicChecker struct{}

// NewHeuristicChecker creates a HeuristicChecker.
func NewHeuristicChecker() *HeuristicChecker { return &HeuristicChecker{} }

func (*HeuristicChecker) Name() string { return HeuristicName }

func (*HeuristicChecker) IsValidTrap(_ context.Context, candidate, target itembank.Item) (bool, error) {
	return !nearDuplicate(candidate.Word, target.Word), nil
}

func nearDuplicate(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return levenshtein.Distance(a, b, nil) <= 1
}
