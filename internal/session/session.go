// ABOUTME: Session record: state, collected intake data and audit history
// ABOUTME: All mutations refresh LastInteractionAt and append a history entry

package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryKind classifies an audit entry.
type HistoryKind string

const (
	HistoryState  HistoryKind = "state"
	HistoryData   HistoryKind = "data"
	HistoryAction HistoryKind = "action"
)

// HistoryEntry is one audit record. History is observational only; routing
// never reads it.
type HistoryEntry struct {
	ID    string      `json:"id"`
	At    time.Time   `json:"at"`
	Kind  HistoryKind `json:"kind"`
	Entry string      `json:"entry"`
}

// Session is one customer's conversation context.
type Session struct {
	ID                string         `json:"id"`
	State             State          `json:"state"`
	Data              Intake         `json:"data"`
	History           []HistoryEntry `json:"history"`
	CreatedAt         time.Time      `json:"created_at"`
	LastInteractionAt time.Time      `json:"last_interaction_at"`
}

// New returns a session in the initial state.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:                id,
		State:             Initial(),
		CreatedAt:         now,
		LastInteractionAt: now,
	}
}

func (s *Session) record(kind HistoryKind, entry string, now time.Time) {
	s.History = append(s.History, HistoryEntry{
		ID:    uuid.New().String(),
		At:    now,
		Kind:  kind,
		Entry: entry,
	})
}

// SetState moves the session to st. An invalid state is a programming error
// and panics.
func (s *Session) SetState(st State, now time.Time) {
	if !st.Valid() {
		panic(fmt.Sprintf("session %s: invalid state %q", s.ID, st.String()))
	}
	s.State = st
	s.LastInteractionAt = now
	s.record(HistoryState, "State changed to: "+st.Name(), now)
}

// SetText stores a text field.
func (s *Session) SetText(f Field, value string, now time.Time) error {
	if err := s.Data.SetText(f, value); err != nil {
		return err
	}
	v, _ := s.Data.Text(f)
	s.LastInteractionAt = now
	s.record(HistoryData, fmt.Sprintf("Data collected: %s = %s", f.Key(), v), now)
	return nil
}

// SetPhoto records an attached photo.
func (s *Session) SetPhoto(ref MediaRef, now time.Time) {
	s.Data.SetPhoto(ref)
	s.LastInteractionAt = now
	s.record(HistoryData, "Data collected: hasPhoto = true", now)
}

// SkipPhoto records that no photo will be sent.
func (s *Session) SkipPhoto(now time.Time) {
	s.Data.SkipPhoto()
	s.LastInteractionAt = now
	s.record(HistoryData, "Data collected: hasPhoto = false", now)
}

// Record appends an action entry.
func (s *Session) Record(action string, now time.Time) {
	s.record(HistoryAction, "Action: "+action, now)
}

// Reset discards data and history and returns to the initial state.
func (s *Session) Reset(now time.Time) {
	*s = *New(s.ID, now)
}

// Clone returns a deep copy safe to hand outside the store.
func (s *Session) Clone() *Session {
	out := *s
	out.Data = s.Data.Clone()
	out.History = append([]HistoryEntry(nil), s.History...)
	return &out
}
