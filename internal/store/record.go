package store

import (
	"context"
	"errors"
	"time"

	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/survey"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("store: session not found")

	// ErrConflict is returned when a record was modified since it was read,
	// or when creating a session whose id is already taken.
	ErrConflict = errors.New("store: version conflict")
)

// Record is everything persisted for one session.
type Record struct {
	Session survey.Session `json:"session"`

	// Pending is the question awaiting an answer. Nil once the session
	// is closed.
	Pending *questiongen.Question `json:"pending,omitempty"`

	// LastAnsweredRef is the ref of the most recently scored question.
	// A resubmission of it is a duplicate, not a new answer.
	LastAnsweredRef string `json:"last_answered_ref,omitempty"`

	// Report is computed once, when the last answer is recorded.
	Report *scoring.Report `json:"report,omitempty"`

	AbortReason string `json:"abort_reason,omitempty"`

	// Version starts at 1 on Create and is incremented by every Update.
	Version int64 `json:"version"`
}

// EventKind names a session lifecycle event.
type EventKind string

const (
	EventSessionStarted   EventKind = "session_started"
	EventAnswerRecorded   EventKind = "answer_recorded"
	EventSessionCompleted EventKind = "session_completed"
	EventSessionAborted   EventKind = "session_aborted"
)

// Event is one append-only audit entry for a session.
type Event struct {
	// ID orders events within a session. Assigned by the log.
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Kind      EventKind      `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionStore persists session records with optimistic versioning.
type SessionStore interface {
	// Create stores a new record and sets its Version to 1.
	Create(ctx context.Context, rec *Record) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Update replaces the stored record if its version still equals
	// rec.Version, then increments rec.Version. Otherwise ErrConflict.
	Update(ctx context.Context, rec *Record) error

	Close() error
}

// EventLog records session lifecycle events.
type EventLog interface {
	Append(ctx context.Context, e Event) error

	// Events returns a session's events in append order.
	Events(ctx context.Context, sessionID string) ([]Event, error)
}

// Backend is a session store that also keeps the event log.
type Backend interface {
	SessionStore
	EventLog
}
