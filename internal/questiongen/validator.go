package questiongen

import (
	"fmt"
	"strings"
)

// Validator checks a built question.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier for this validator, e.g. "structural".
	Name() string

	// Validate returns nil if the question passes.
	Validate(q *Question) *ValidationError
}

// ValidationError describes why a question failed validation.
type ValidationError struct {
	Validator string // Name of the validator that failed
	Message   string // Human-readable description of the failure
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks option invariants: one correct option whose
// ID matches CorrectOptionID, one "I don't know" option, unique IDs and
// unique texts.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *Question) *ValidationError {
	if q.Word == "" {
		return &ValidationError{Validator: v.Name(), Message: "prompt word is empty"}
	}
	if len(q.Options) < 2 {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("only %d options", len(q.Options))}
	}

	ids := make(map[string]bool, len(q.Options))
	texts := make(map[string]bool, len(q.Options))
	correct, unknown := 0, 0
	for _, o := range q.Options {
		if ids[o.ID] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate option id %q", o.ID)}
		}
		ids[o.ID] = true

		key := normalizeText(o.Text)
		if texts[key] {
			return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("duplicate option text %q", o.Text)}
		}
		texts[key] = true

		switch o.Kind {
		case KindCorrect:
			correct++
			if o.ID != q.CorrectOptionID {
				return &ValidationError{Validator: v.Name(), Message: "correct option id mismatch"}
			}
		case KindUnknown:
			unknown++
		}
	}
	if correct != 1 {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("%d correct options", correct)}
	}
	if unknown != 1 {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("%d \"I don't know\" options", unknown)}
	}
	return nil
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
