package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/secfunded/stackd/internal/store"
)

// DB implements store.Journal for SQLite (modernc.org/sqlite driver, CGO-free).
// Path is a filesystem path to the database file. Use ":memory:" for in-memory.

type DB struct {
	db *sql.DB
}

// New opens a SQLite database at path.
func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service TEXT NOT NULL,
			type TEXT NOT NULL,
			pid INTEGER NOT NULL,
			detail TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_service ON lifecycle_events(service);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_occurred ON lifecycle_events(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Append(ctx context.Context, evt store.Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events(service, type, pid, detail, occurred_at)
		VALUES(?, ?, ?, ?, ?);`,
		evt.Service, string(evt.Type), evt.PID, evt.Detail, evt.OccurredAt.UTC())
	return err
}

func (s *DB) Recent(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, type, pid, detail, occurred_at
		FROM lifecycle_events
		ORDER BY id DESC
		LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []store.Event
	for rows.Next() {
		var evt store.Event
		var typ string
		if err := rows.Scan(&evt.Service, &typ, &evt.PID, &evt.Detail, &evt.OccurredAt); err != nil {
			return nil, err
		}
		evt.Type = store.EventType(typ)
		out = append(out, evt)
	}
	return out, rows.Err()
}
