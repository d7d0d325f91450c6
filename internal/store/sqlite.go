// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists sessions, their history and the hand-off ledger with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/intake-gateway/internal/session"
)

// timeFormat is fixed width so stored timestamps compare correctly as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeFormat, s) }

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	keys   *keyedMutex
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps per-connection pragmas and :memory: databases consistent.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		keys:   newKeyedMutex(),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id                  TEXT PRIMARY KEY,
			state               TEXT NOT NULL,
			data_json           TEXT NOT NULL,
			created_at          TEXT NOT NULL,
			last_interaction_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_last_interaction
			ON sessions(last_interaction_at);

		CREATE TABLE IF NOT EXISTS session_history (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			at         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			entry      TEXT NOT NULL,

			CHECK (kind IN ('state', 'data', 'action'))
		);

		CREATE INDEX IF NOT EXISTS idx_session_history_session
			ON session_history(session_id, seq);

		CREATE TABLE IF NOT EXISTS handoffs (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			category   TEXT NOT NULL,
			summary    TEXT NOT NULL,
			has_media  INTEGER NOT NULL DEFAULT 0,
			delivered  INTEGER NOT NULL DEFAULT 0,
			error      TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_handoffs_created ON handoffs(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// load reads a session and its history. Returns ErrNotFound if absent.
func (s *SQLiteStore) load(ctx context.Context, id string) (*session.Session, error) {
	var stateStr, dataJSON, createdAtStr, lastStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT state, data_json, created_at, last_interaction_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&stateStr, &dataJSON, &createdAtStr, &lastStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	sess := &session.Session{ID: id}

	st, err := session.ParseState(stateStr)
	if err != nil {
		// Left invalid on purpose: the router restarts conversations it cannot place.
		s.logger.Warn("stored session has unreadable state", "chat", id, "state", stateStr, "error", err)
		st = session.State{Step: session.NumSteps}
	}
	sess.State = st

	if err := json.Unmarshal([]byte(dataJSON), &sess.Data); err != nil {
		s.logger.Warn("stored session has unreadable data", "chat", id, "error", err)
		sess.Data = session.Intake{}
		sess.State = session.State{Step: session.NumSteps}
	}

	if sess.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.LastInteractionAt, err = parseTime(lastStr); err != nil {
		return nil, fmt.Errorf("parsing last_interaction_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, kind, entry
		FROM session_history
		WHERE session_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h session.HistoryEntry
		var atStr, kind string
		if err := rows.Scan(&h.ID, &atStr, &kind, &h.Entry); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		if h.At, err = parseTime(atStr); err != nil {
			return nil, fmt.Errorf("parsing history time: %w", err)
		}
		h.Kind = session.HistoryKind(kind)
		sess.History = append(sess.History, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return sess, nil
}

// save writes sess. prev is the version it was derived from, or nil for a
// session not yet stored.
func (s *SQLiteStore) save(ctx context.Context, prev, sess *session.Session) error {
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, state, data_json, created_at, last_interaction_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			data_json = excluded.data_json,
			created_at = excluded.created_at,
			last_interaction_at = excluded.last_interaction_at
	`, sess.ID, sess.State.String(), string(dataJSON), formatTime(sess.CreatedAt), formatTime(sess.LastInteractionAt))
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	start := 0
	if prev != nil {
		start = len(prev.History)
		if !historyExtends(prev.History, sess.History) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_history WHERE session_id = ?`, sess.ID); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
			start = 0
		}
	}

	for i := start; i < len(sess.History); i++ {
		h := sess.History[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_history (id, session_id, seq, at, kind, entry)
			VALUES (?, ?, ?, ?, ?, ?)
		`, h.ID, sess.ID, i, formatTime(h.At), string(h.Kind), h.Entry)
		if err != nil {
			return fmt.Errorf("inserting history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// historyExtends reports whether next is prev with entries appended.
func historyExtends(prev, next []session.HistoryEntry) bool {
	if len(next) < len(prev) {
		return false
	}
	if len(prev) == 0 {
		return true
	}
	return next[len(prev)-1].ID == prev[len(prev)-1].ID
}

// Update loads the session, applies fn and writes the result in one transaction.
func (s *SQLiteStore) Update(ctx context.Context, id string, now time.Time, fn UpdateFunc) (*session.Session, error) {
	unlock := s.keys.Lock(id)
	defer unlock()

	prev, err := s.load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		prev = nil
	case err != nil:
		return nil, err
	}

	var work *session.Session
	if prev == nil {
		work = session.New(id, now)
	} else {
		work = prev.Clone()
	}

	if err := fn(work); err != nil {
		if prev == nil {
			// First contact still creates the session.
			if saveErr := s.save(ctx, nil, session.New(id, now)); saveErr != nil {
				return nil, saveErr
			}
		}
		return nil, err
	}

	if err := s.save(ctx, prev, work); err != nil {
		return nil, err
	}
	return work.Clone(), nil
}

// GetOrCreate returns the session, creating it when absent.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	return s.Update(ctx, id, now, func(*session.Session) error { return nil })
}

// Get returns the session or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*session.Session, error) {
	unlock := s.keys.Lock(id)
	defer unlock()
	return s.load(ctx, id)
}

// List returns all sessions, most recently active first.
func (s *SQLiteStore) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY last_interaction_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	out := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Reset reinitializes the session.
func (s *SQLiteStore) Reset(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	return s.Update(ctx, id, now, func(sess *session.Session) error {
		sess.Reset(now)
		return nil
	})
}

// SweepExpired deletes idle sessions and their history. Sessions with an
// update in flight are skipped.
func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := formatTime(now.Add(-retention))

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE last_interaction_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("finding expired sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning expired session: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("iterating expired sessions: %w", err)
	}

	removed := 0
	for _, id := range ids {
		unlock, ok := s.keys.TryLock(id)
		if !ok {
			continue
		}
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND last_interaction_at < ?`, id, cutoff)
		unlock()
		if err != nil {
			return removed, fmt.Errorf("deleting session %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			removed++
		}
	}
	return removed, nil
}

// RecordHandoff appends to the hand-off ledger. Missing IDs and timestamps are filled in.
func (s *SQLiteStore) RecordHandoff(ctx context.Context, h *Handoff) error {
	fillHandoff(h)

	var errText sql.NullString
	if h.Error != "" {
		errText = sql.NullString{String: h.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs (id, session_id, category, summary, has_media, delivered, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.SessionID, h.Category, h.Summary, h.HasMedia, h.Delivered, errText, formatTime(h.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting handoff: %w", err)
	}
	return nil
}

// ListHandoffs returns the newest hand-offs first.
func (s *SQLiteStore) ListHandoffs(ctx context.Context, limit int) ([]*Handoff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, category, summary, has_media, delivered, error, created_at
		FROM handoffs
		ORDER BY created_at DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying handoffs: %w", err)
	}
	defer rows.Close()

	var out []*Handoff
	for rows.Next() {
		var h Handoff
		var errText sql.NullString
		var createdAtStr string
		if err := rows.Scan(&h.ID, &h.SessionID, &h.Category, &h.Summary, &h.HasMedia, &h.Delivered, &errText, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning handoff: %w", err)
		}
		h.Error = errText.String
		if h.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating handoffs: %w", err)
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
