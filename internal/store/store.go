package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"

	// Postgres via pgx's database/sql driver, registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQLStore keeps sessions and events in SQLite or Postgres.
type SQLStore struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
}

// OpenSQLite opens the SQLite database at dsn, applies pragmas and
// migrates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return newSQLStore(ctx, db, dialect.SQLite)
}

// OpenPostgres connects to Postgres at dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return newSQLStore(ctx, db, dialect.Postgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, name string) (*SQLStore, error) {
	drv := entsql.OpenDB(name, db)

	m, err := schema.NewMigrate(drv)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &SQLStore{db: db, drv: drv, dialect: name}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.drv.Close()
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func (s *SQLStore) Create(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(withVersion(rec, 1))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	now := time.Now().UTC()
	query, args := s.builder().
		Insert(sessionsTable.Name).
		Columns(colID, colStatus, colData, colVersion, colCreatedAt, colUpdatedAt).
		Values(rec.Session.ID, string(rec.Session.Status), string(data), int64(1), now, now).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return fmt.Errorf("create session %s: %w", rec.Session.ID, ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	rec.Version = 1
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	b := s.builder()
	query, args := b.Select(colData, colVersion).
		From(b.Table(sessionsTable.Name)).
		Where(entsql.EQ(colID, id)).
		Query()

	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	rec.Version = version
	return &rec, nil
}

func (s *SQLStore) Update(ctx context.Context, rec *Record) error {
	next := rec.Version + 1
	data, err := json.Marshal(withVersion(rec, next))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	query, args := s.builder().
		Update(sessionsTable.Name).
		Set(colStatus, string(rec.Session.Status)).
		Set(colData, string(data)).
		Set(colVersion, next).
		Set(colUpdatedAt, time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ(colID, rec.Session.ID),
			entsql.EQ(colVersion, rec.Version),
		)).
		Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, rec.Session.ID); err != nil {
			return err
		}
		return fmt.Errorf("session %s at version %d: %w", rec.Session.ID, rec.Version, ErrConflict)
	}
	rec.Version = next
	return nil
}

func (s *SQLStore) Append(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query, args := s.builder().
		Insert(eventsTable.Name).
		Columns(colSessionID, colKind, colPayload, colCreatedAt).
		Values(e.SessionID, string(e.Kind), string(payload), e.CreatedAt).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append %s event: %w", e.Kind, err)
	}
	return nil
}

func (s *SQLStore) Events(ctx context.Context, sessionID string) ([]Event, error) {
	b := s.builder()
	query, args := b.Select(colID, colSessionID, colKind, colPayload, colCreatedAt).
		From(b.Table(eventsTable.Name)).
		Where(entsql.EQ(colSessionID, sessionID)).
		OrderBy(entsql.Asc(colID)).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			kind    string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal event %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// withVersion returns a shallow copy of rec stamped with version.
func withVersion(rec *Record, version int64) Record {
	cp := *rec
	cp.Version = version
	return cp
}

// applyPragmas configures SQLite for a single-process server.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. LEXISURVEY_DB environment variable
// 2. $XDG_DATA_HOME/lexisurvey/lexisurvey.db
// 3. ~/.local/share/lexisurvey/lexisurvey.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LEXISURVEY_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "lexisurvey", "lexisurvey.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
