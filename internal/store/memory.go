// ABOUTME: In-memory Store implementation
// ABOUTME: Default backend; sessions live only as long as the process

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/2389/intake-gateway/internal/session"
)

type memoryEntry struct {
	mu      sync.Mutex
	sess    *session.Session
	removed bool
}

// MemoryStore keeps sessions in a map with one mutex per session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	handoffs []*Handoff
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
	}
}

func (m *MemoryStore) entry(id string, now time.Time) *memoryEntry {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e
	}
	e = &memoryEntry{sess: session.New(id, now)}
	m.sessions[id] = e
	return e
}

// Update runs fn on a copy of the session and keeps the copy if fn succeeds.
func (m *MemoryStore) Update(ctx context.Context, id string, now time.Time, fn UpdateFunc) (*session.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, retry, err := m.apply(m.entry(id, now), fn)
		if retry {
			// Swept between lookup and lock; start over with a fresh entry.
			continue
		}
		return out, err
	}
}

func (m *MemoryStore) apply(e *memoryEntry, fn UpdateFunc) (*session.Session, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, true, nil
	}

	work := e.sess.Clone()
	if err := fn(work); err != nil {
		return nil, false, err
	}
	e.sess = work
	return work.Clone(), false, nil
}

// GetOrCreate returns a copy of the session, creating it when absent.
func (m *MemoryStore) GetOrCreate(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	return m.Update(ctx, id, now, func(*session.Session) error { return nil })
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrNotFound
	}
	return e.sess.Clone(), nil
}

// List returns copies of all sessions, most recently active first.
func (m *MemoryStore) List(ctx context.Context) ([]*session.Session, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*session.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.sess.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastInteractionAt.After(out[j].LastInteractionAt)
	})
	return out, nil
}

// Reset reinitializes the session.
func (m *MemoryStore) Reset(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	return m.Update(ctx, id, now, func(s *session.Session) error {
		s.Reset(now)
		return nil
	})
}

// SweepExpired removes idle sessions. Entries locked by an in-flight update
// are skipped and reconsidered on the next sweep.
func (m *MemoryStore) SweepExpired(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.LastInteractionAt.Before(cutoff) {
			e.removed = true
			delete(m.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed, nil
}

// RecordHandoff appends to the hand-off ledger. Missing IDs and timestamps are filled in.
func (m *MemoryStore) RecordHandoff(ctx context.Context, h *Handoff) error {
	fillHandoff(h)

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *h
	m.handoffs = append(m.handoffs, &c)
	return nil
}

// ListHandoffs returns the newest hand-offs first.
func (m *MemoryStore) ListHandoffs(ctx context.Context, limit int) ([]*Handoff, error) {
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Handoff, 0, min(limit, len(m.handoffs)))
	for i := len(m.handoffs) - 1; i >= 0 && len(out) < limit; i-- {
		c := *m.handoffs[i]
		out = append(out, &c)
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
