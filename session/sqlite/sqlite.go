// Package sqlite provides a durable core.SessionStore backed by an SQLite
// database file (pure-Go driver, no cgo). Each finished session is stored as
// one row holding indexed summary columns plus the full snapshot as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/pharmaintel/core"
)

// Store archives sessions in SQLite.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the database at path and applies the schema.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string { return s.path }

const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	state TEXT NOT NULL,
	decision TEXT,
	confidence INTEGER,
	document TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
`

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Save upserts the snapshot.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("%w: snapshot has no session id", core.ErrInvalidInput)
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var decision, confidence any
	if snap.Decision != nil {
		decision = snap.Decision.String()
	}
	if snap.Result != nil {
		confidence = snap.Result.Confidence
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, query, state, decision, confidence, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			decision = excluded.decision,
			confidence = excluded.confidence,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		snap.SessionID, snap.Query, snap.State.String(), decision, confidence, string(doc),
		snap.CreatedAt.UnixNano(), snap.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	return nil
}

// Get returns the archived snapshot or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc string
	err := s.conn.QueryRowContext(ctx, "SELECT document FROM sessions WHERE id = ?", sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("%w: %s", core.ErrNotFound, sessionID)
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return decode(doc)
}

// List returns snapshots ordered by updated_at descending; limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := "SELECT document FROM sessions ORDER BY updated_at DESC, id ASC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []core.Snapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		snap, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func decode(doc string) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
