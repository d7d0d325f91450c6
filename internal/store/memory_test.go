// ABOUTME: MemoryStore-specific tests
// ABOUTME: Covers sweeps racing with in-flight updates

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/session"
)

func TestMemoryStore_SweepSkipsSessionMidUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "busy", baseTime)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, "busy", baseTime, func(sess *session.Session) error {
			close(entered)
			<-release
			sess.SetState(session.At(session.StepMainMenu), baseTime)
			return nil
		})
		done <- err
	}()

	<-entered
	removed, err := s.SweepExpired(ctx, baseTime.Add(48*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	close(release)
	require.NoError(t, <-done)

	stored, err := s.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, session.StepMainMenu, stored.State.Step)
}

func TestMemoryStore_UpdateAfterSweepStartsFresh(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, SetText(ctx, s, "c1", session.FieldPartName, "mola", baseTime))
	_, err := s.SweepExpired(ctx, baseTime.Add(48*time.Hour), 24*time.Hour)
	require.NoError(t, err)

	sess, err := s.Update(ctx, "c1", baseTime.Add(48*time.Hour), func(*session.Session) error { return nil })
	require.NoError(t, err)
	assert.True(t, sess.Data.Empty(), "swept session must not keep old data")
}

func TestMemoryStore_PanicInUpdateLeavesSessionUsable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, SetState(ctx, s, "c1", session.At(session.StepMainMenu), baseTime))

	assert.Panics(t, func() {
		_, _ = s.Update(ctx, "c1", baseTime, func(sess *session.Session) error {
			sess.SetState(session.At(session.StepWaitingHuman), baseTime)
			panic("handler bug")
		})
	})

	stored, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, session.At(session.StepMainMenu), stored.State, "partial changes are discarded")

	// The entry lock was released.
	require.NoError(t, SetState(ctx, s, "c1", session.Initial(), baseTime))
}
