package itembank

import (
	"fmt"
	"strings"
)

// validateItems performs all structural checks on the given item set.
// Returns a combined error describing all problems found, or nil if valid.
func validateItems(items []Item) error {
	var errs []string

	idSet := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID == "" {
			errs = append(errs, fmt.Sprintf("item with word %q has empty ID", it.Word))
			continue
		}
		if idSet[it.ID] {
			errs = append(errs, fmt.Sprintf("duplicate item ID: %q", it.ID))
		}
		idSet[it.ID] = true
		if it.Rank < 1 {
			errs = append(errs, fmt.Sprintf("item %q has non-positive rank %d", it.ID, it.Rank))
		}
		if strings.TrimSpace(it.Word) == "" {
			errs = append(errs, fmt.Sprintf("item %q has empty word", it.ID))
		}
		if strings.TrimSpace(it.Gloss) == "" {
			errs = append(errs, fmt.Sprintf("item %q has empty gloss", it.ID))
		}
	}

	// Check for dangling or malformed relations
	for _, it := range items {
		for _, rel := range it.Relations {
			if !rel.Kind.Valid() {
				errs = append(errs, fmt.Sprintf("item %q has unknown relation kind %q", it.ID, rel.Kind))
			}
			if rel.TargetID == it.ID {
				errs = append(errs, fmt.Sprintf("item %q relates to itself", it.ID))
			}
			if !idSet[rel.TargetID] {
				errs = append(errs, fmt.Sprintf("item %q references nonexistent item %q", it.ID, rel.TargetID))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBank, strings.Join(errs, "; "))
	}
	return nil
}
