// ABOUTME: Behaviour tests shared by every Store implementation
// ABOUTME: Runs the same cases against MemoryStore and SQLiteStore

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/intake-gateway/internal/session"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
}

func TestStore_GetOrCreate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, "c1")
		assert.ErrorIs(t, err, ErrNotFound)

		sess, err := s.GetOrCreate(ctx, "c1", baseTime)
		require.NoError(t, err)
		assert.Equal(t, "c1", sess.ID)
		assert.Equal(t, session.Initial(), sess.State)
		assert.True(t, sess.Data.Empty())
		assert.True(t, sess.CreatedAt.Equal(baseTime))

		again, err := s.GetOrCreate(ctx, "c1", baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, again.CreatedAt.Equal(baseTime), "second call must not recreate")
	})
}

func TestStore_UpdateSavesChanges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := baseTime.Add(time.Minute)

		got, err := s.Update(ctx, "c1", now, func(sess *session.Session) error {
			sess.SetState(session.At(session.StepMainMenu), now)
			return sess.SetText(session.FieldServiceType, "Troca de mola", now)
		})
		require.NoError(t, err)
		assert.Equal(t, session.StepMainMenu, got.State.Step)

		// The returned copy is detached from the store.
		got.State = session.At(session.StepWaitingHuman)

		stored, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, session.At(session.StepMainMenu), stored.State)
		v, ok := stored.Data.Text(session.FieldServiceType)
		assert.True(t, ok)
		assert.Equal(t, "Troca de mola", v)
		assert.Len(t, stored.History, 2)
		assert.True(t, stored.LastInteractionAt.Equal(now))
	})
}

func TestStore_UpdateErrorDiscardsChanges(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		_, err := s.Update(ctx, "c1", baseTime, func(sess *session.Session) error {
			sess.SetState(session.At(session.StepMainMenu), baseTime)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stored, err := s.Get(ctx, "c1")
		require.NoError(t, err, "first contact still creates the session")
		assert.Equal(t, session.Initial(), stored.State)
		assert.Empty(t, stored.History)
	})
}

func TestStore_Helpers(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, SetState(ctx, s, "c1", session.Vehicle(session.StepVehicleModel, session.FlowSales), baseTime))
		require.NoError(t, SetText(ctx, s, "c1", session.FieldVehicleModel, " Fiat Uno ", baseTime))
		err := SetText(ctx, s, "c1", session.FieldVehicleYear, "   ", baseTime)
		assert.ErrorIs(t, err, session.ErrEmptyValue)

		data, err := Data(ctx, s, "c1")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"vehicleModel": "Fiat Uno"}, data.Map())

		_, err = Data(ctx, s, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Reset(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, SetState(ctx, s, "c1", session.At(session.StepWaitingHuman), baseTime))
		require.NoError(t, SetText(ctx, s, "c1", session.FieldDescription, "boleto", baseTime))

		later := baseTime.Add(time.Hour)
		sess, err := s.Reset(ctx, "c1", later)
		require.NoError(t, err)
		assert.Equal(t, session.Initial(), sess.State)
		assert.True(t, sess.Data.Empty())
		assert.Empty(t, sess.History)

		stored, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, session.Initial(), stored.State)
		assert.Empty(t, stored.History)

		// History written after a reset starts from scratch.
		require.NoError(t, SetState(ctx, s, "c1", session.At(session.StepMainMenu), later))
		stored, err = s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, stored.History, 1)
	})
}

func TestStore_SweepExpired(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		retention := 24 * time.Hour
		now := baseTime.Add(48 * time.Hour)

		_, err := s.GetOrCreate(ctx, "old", baseTime)
		require.NoError(t, err)
		require.NoError(t, SetState(ctx, s, "fresh", session.At(session.StepMainMenu), now.Add(-time.Hour)))
		before, err := s.Get(ctx, "fresh")
		require.NoError(t, err)

		removed, err := s.SweepExpired(ctx, now, retention)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, ErrNotFound)

		after, err := s.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		// Idempotent.
		removed, err = s.SweepExpired(ctx, now, retention)
		require.NoError(t, err)
		assert.Zero(t, removed)

		// A swept customer comes back to a brand-new session.
		sess, err := s.GetOrCreate(ctx, "old", now)
		require.NoError(t, err)
		assert.Equal(t, session.Initial(), sess.State)
		assert.Empty(t, sess.History)
	})
}

func TestStore_ConcurrentUpdatesSameKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const writers = 20

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.Update(ctx, "c1", baseTime, func(sess *session.Session) error {
					sess.Record(fmt.Sprintf("write %d", i), baseTime)
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		stored, err := s.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, stored.History, writers, "no update may be lost")
	})
}

func TestStore_List(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetOrCreate(ctx, "a", baseTime)
		require.NoError(t, err)
		_, err = s.GetOrCreate(ctx, "b", baseTime.Add(time.Minute))
		require.NoError(t, err)

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].ID)
		assert.Equal(t, "a", list[1].ID)
	})
}

func TestStore_Handoffs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			h := &Handoff{
				SessionID: fmt.Sprintf("c%d", i),
				Category:  "Financeiro",
				Summary:   "• Serviço: Financeiro",
				Delivered: i != 1,
				CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
			}
			if i == 1 {
				h.Error = "room not joined"
			}
			require.NoError(t, s.RecordHandoff(ctx, h))
			assert.NotEmpty(t, h.ID)
		}

		list, err := s.ListHandoffs(ctx, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "c2", list[0].SessionID)
		assert.Equal(t, "c1", list[1].SessionID)
		assert.False(t, list[1].Delivered)
		assert.Equal(t, "room not joined", list[1].Error)
		assert.True(t, list[0].CreatedAt.Equal(baseTime.Add(2*time.Minute)))
	})
}

func TestStore_ContextCancelled(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Update(ctx, "c1", baseTime, func(*session.Session) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
