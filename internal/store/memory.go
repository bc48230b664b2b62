package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Records are stored
// serialized so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	versions map[string]int64
	events   map[string][]Event
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		versions: make(map[string]int64),
		events:   make(map[string][]Event),
	}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	data, err := json.Marshal(withVersion(rec, 1))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[rec.Session.ID]; ok {
		return fmt.Errorf("create session %s: %w", rec.Session.ID, ErrConflict)
	}
	s.sessions[rec.Session.ID] = data
	s.versions[rec.Session.ID] = 1
	rec.Version = 1
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	data, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *MemoryStore) Update(_ context.Context, rec *Record) error {
	next := rec.Version + 1
	data, err := json.Marshal(withVersion(rec, next))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.versions[rec.Session.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", rec.Session.ID, ErrNotFound)
	}
	if cur != rec.Version {
		return fmt.Errorf("session %s at version %d, stored %d: %w",
			rec.Session.ID, rec.Version, cur, ErrConflict)
	}
	s.sessions[rec.Session.ID] = data
	s.versions[rec.Session.ID] = next
	rec.Version = next
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	e.Payload = nil
	if err := json.Unmarshal(data, &e.Payload); err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.events[e.SessionID]) + 1)
	s.events[e.SessionID] = append(s.events[e.SessionID], e)
	return nil
}

func (s *MemoryStore) Events(_ context.Context, sessionID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events[sessionID]...), nil
}
