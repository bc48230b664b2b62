package survey

import (
	"errors"
	"slices"
	"time"
)

// ErrSessionClosed is returned when an answer is applied to a session
// that is complete or aborted.
var ErrSessionClosed = errors.New("survey: session is closed")

// Status is the lifecycle state of a session.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusAborted    Status = "aborted"
)

// Closed reports whether no further answers are accepted.
func (s Status) Closed() bool {
	return s == StatusComplete || s == StatusAborted
}

// AnswerRecord is one scored answer. It is never modified after being
// appended to a session's history.
type AnswerRecord struct {
	QuestionRef string `json:"question_ref"`
	ItemID      string `json:"item_id"`

	// TargetRank is the rank the controller asked for.
	TargetRank int `json:"target_rank"`

	// ItemRank is the rank of the item actually shown. Scoring uses it.
	ItemRank int `json:"item_rank"`

	Correct    bool          `json:"correct"`
	TimeTaken  time.Duration `json:"time_taken"`
	Phase      Phase         `json:"phase"`
	AnsweredAt time.Time     `json:"answered_at"`
}

// Session is the state of one assessment attempt.
type Session struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	// Phase only moves forward through the schedule.
	Phase Phase `json:"phase"`

	// RankEstimate is the current guess at the learner's frontier.
	RankEstimate int `json:"rank_estimate"`

	// StepBound is the fixed half-width of the current phase.
	StepBound int `json:"step_bound"`

	// QuestionCount always equals len(History).
	QuestionCount int            `json:"question_count"`
	History       []AnswerRecord `json:"history"`

	StartRank int `json:"start_rank"`

	// MinRank and MaxRank are the repository bounds captured at start.
	MinRank int `json:"min_rank"`
	MaxRank int `json:"max_rank"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no history storage with s.
func (s Session) Clone() Session {
	s.History = slices.Clone(s.History)
	return s
}

// Correct returns the number of correct answers so far.
func (s Session) Correct() int {
	n := 0
	for _, r := range s.History {
		if r.Correct {
			n++
		}
	}
	return n
}
