// ABOUTME: Store interface and hand-off record type for intake-gateway persistence
// ABOUTME: Sessions are read and mutated through Update, which serializes calls per customer

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/2389/intake-gateway/internal/session"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UpdateFunc mutates a working copy of a session. Returning an error discards
// the changes.
type UpdateFunc func(s *session.Session) error

// Store holds one session per customer identifier.
type Store interface {
	// Update runs fn on the session for id, creating it in the initial state
	// when absent, and saves the result if fn succeeds. Calls for the same id
	// never overlap. The returned session is a copy of what was saved.
	Update(ctx context.Context, id string, now time.Time, fn UpdateFunc) (*session.Session, error)

	// GetOrCreate returns the session for id, creating it when absent.
	GetOrCreate(ctx context.Context, id string, now time.Time) (*session.Session, error)

	// Get returns the session for id or ErrNotFound.
	Get(ctx context.Context, id string) (*session.Session, error)

	// List returns all sessions, most recently active first.
	List(ctx context.Context) ([]*session.Session, error)

	// Reset discards data and history for id and returns it to the initial state.
	Reset(ctx context.Context, id string, now time.Time) (*session.Session, error)

	// SweepExpired removes sessions whose last interaction is older than
	// now minus retention and returns how many were removed. Sessions being
	// updated while the sweep runs are left alone.
	SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error)

	// Hand-off ledger
	RecordHandoff(ctx context.Context, h *Handoff) error
	ListHandoffs(ctx context.Context, limit int) ([]*Handoff, error)

	// Close releases any resources held by the store
	Close() error
}

// Handoff records one conversation passed to a human operator.
type Handoff struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	HasMedia  bool      `json:"has_media"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	defaultHandoffLimit = 100
	maxHandoffLimit     = 1000
)

// fillHandoff assigns an ID and timestamp when the caller left them empty.
func fillHandoff(h *Handoff) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHandoffLimit
	}
	if limit > maxHandoffLimit {
		return maxHandoffLimit
	}
	return limit
}

// SetState moves a session to st.
func SetState(ctx context.Context, s Store, id string, st session.State, now time.Time) error {
	_, err := s.Update(ctx, id, now, func(sess *session.Session) error {
		sess.SetState(st, now)
		return nil
	})
	return err
}

// SetText stores one text field on a session.
func SetText(ctx context.Context, s Store, id string, f session.Field, value string, now time.Time) error {
	_, err := s.Update(ctx, id, now, func(sess *session.Session) error {
		return sess.SetText(f, value, now)
	})
	return err
}

// Data returns everything collected for a session so far.
func Data(ctx context.Context, s Store, id string) (session.Intake, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return session.Intake{}, err
	}
	return sess.Data, nil
}
