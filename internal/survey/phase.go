package survey

import (
	"fmt"
)

// Phase is a stage of the adaptive search.
type Phase string

const (
	PhaseCoarse Phase = "coarse" // Locate the neighbourhood of the frontier
	PhaseFine   Phase = "fine"   // Narrow the estimate
	PhaseVerify Phase = "verify" // Confirm stability, expose guessing
)

// Stage binds a phase to its question count and fixed step bound.
type Stage struct {
	Phase     Phase `yaml:"phase" json:"phase"`
	Questions int   `yaml:"questions" json:"questions"`
	StepBound int   `yaml:"step_bound" json:"step_bound"`
}

// Schedule is the ordered list of stages a session walks through.
type Schedule []Stage

// DefaultSchedule returns the 5/7/3 question staircase with bounds
// ±1500, ±200 and ±100.
func DefaultSchedule() Schedule {
	return Schedule{
		{Phase: PhaseCoarse, Questions: 5, StepBound: 1500},
		{Phase: PhaseFine, Questions: 7, StepBound: 200},
		{Phase: PhaseVerify, Questions: 3, StepBound: 100},
	}
}

// Validate checks that every stage asks at least one question, phases are
// distinct and step bounds strictly decrease.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schedule has no stages")
	}
	seen := make(map[Phase]bool, len(s))
	for i, st := range s {
		if st.Phase == "" {
			return fmt.Errorf("stage %d has no phase", i)
		}
		if seen[st.Phase] {
			return fmt.Errorf("phase %q appears twice", st.Phase)
		}
		seen[st.Phase] = true
		if st.Questions < 1 {
			return fmt.Errorf("stage %q must ask at least one question", st.Phase)
		}
		if st.StepBound < 1 {
			return fmt.Errorf("stage %q has non-positive step bound %d", st.Phase, st.StepBound)
		}
		if i > 0 && st.StepBound >= s[i-1].StepBound {
			return fmt.Errorf("step bound of %q (%d) must be below %q (%d)",
				st.Phase, st.StepBound, s[i-1].Phase, s[i-1].StepBound)
		}
	}
	return nil
}

// Total returns the number of questions in a full session.
func (s Schedule) Total() int {
	n := 0
	for _, st := range s {
		n += st.Questions
	}
	return n
}

// StageAt returns the stage in which the question at zero-based index
// answered is asked. Indices past the end map to the last stage.
func (s Schedule) StageAt(answered int) Stage {
	seen := 0
	for _, st := range s {
		seen += st.Questions
		if answered < seen {
			return st
		}
	}
	return s[len(s)-1]
}

// Index returns the position of p in the schedule, or -1.
func (s Schedule) Index(p Phase) int {
	for i, st := range s {
		if st.Phase == p {
			return i
		}
	}
	return -1
}
