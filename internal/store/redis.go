package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is how long an untouched session survives in Redis.
const DefaultSessionTTL = 24 * time.Hour

// RedisStore keeps each session as a JSON value with a TTL. Every write
// refreshes the TTL, so only abandoned sessions expire.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps client. Zero ttl means DefaultSessionTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if prefix == "" {
		prefix = "lexisurvey"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key helpers
func (s *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *RedisStore) eventsKey(id string) string {
	return fmt.Sprintf("%s:session:%s:events", s.prefix, id)
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(withVersion(rec, 1))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.sessionKey(rec.Session.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("create session %s: %w", rec.Session.ID, ErrConflict)
	}
	rec.Version = 1
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	return decodeRedisRecord(id, data, err)
}

func (s *RedisStore) Update(ctx context.Context, rec *Record) error {
	key := s.sessionKey(rec.Session.ID)
	next := rec.Version + 1
	data, err := json.Marshal(withVersion(rec, next))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		cur, err := decodeRedisRecord(rec.Session.ID, raw, err)
		if err != nil {
			return err
		}
		if cur.Version != rec.Version {
			return fmt.Errorf("session %s at version %d, stored %d: %w",
				rec.Session.ID, rec.Version, cur.Version, ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.Expire(ctx, s.eventsKey(rec.Session.ID), s.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %s: %w", rec.Session.ID, ErrConflict)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("update session: %w", err)
	}
	rec.Version = next
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Append pushes e onto the session's event list. IDs are list positions
// and are assigned when events are read back.
func (s *RedisStore) Append(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.ID = 0
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := s.eventsKey(e.SessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return nil
}

func (s *RedisStore) Events(ctx context.Context, sessionID string) ([]Event, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events := make([]Event, 0, len(raw))
	for i, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event %d: %w", i+1, err)
		}
		e.ID = int64(i + 1)
		events = append(events, e)
	}
	return events, nil
}

func decodeRedisRecord(id string, data []byte, err error) (*Record, error) {
	if err == redis.Nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &rec, nil
}
