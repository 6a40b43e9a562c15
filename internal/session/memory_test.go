package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/snapdash/internal/model"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	store := NewMemoryStore(0, 0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	sess := New(model.TrendParams{FuturePeriods: 3, Degree: 9, Enabled: true})
	assert.Equal(t, 4, sess.Params.Degree, "params are clamped on creation")
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, 3, got.Params.FuturePeriods)
	assert.False(t, got.HasPayload())

	got.Payload = []byte(`{"snapshots":[]}`)
	require.NoError(t, store.Put(ctx, got))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.HasPayload())
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, sess.ID), ErrNotFound)
}

func TestMemoryStore_InvalidID(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Put(ctx, Session{ID: "nope"}), ErrInvalidID)
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	a := New(model.DefaultTrendParams())
	b := New(model.DefaultTrendParams())
	a.Params.FuturePeriods = 12
	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, b))

	gotB, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, gotB.Params.FuturePeriods)
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore(time.Hour, time.Hour)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	sess := New(model.DefaultTrendParams())
	require.NoError(t, store.Put(ctx, sess))

	assert.Equal(t, 0, store.cleanup(time.Now()))
	assert.Equal(t, 1, store.cleanup(time.Now().Add(2*time.Hour)))
	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, New(model.DefaultTrendParams()).ID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_UpdateConcurrent(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	sess := New(model.DefaultTrendParams())
	require.NoError(t, store.Put(ctx, sess))

	const writers = 50
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, sess.ID, func(s *Session) error {
				if i%2 == 0 {
					s.Payload = append(s.Payload, 'x')
				} else {
					s.Params.FuturePeriods++
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Payload, writers/2, "every payload write kept")
	assert.Equal(t, writers/2, got.Params.FuturePeriods, "every params write kept")
}

func TestMemoryStore_UpdateErrors(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	_, err := store.Update(ctx, "nope", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = store.Update(ctx, New(model.DefaultTrendParams()).ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	sess := New(model.DefaultTrendParams())
	require.NoError(t, store.Put(ctx, sess))
	boom := errors.New("boom")
	_, err = store.Update(ctx, sess.ID, func(s *Session) error {
		s.Source = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Source, "aborted update leaves the session unchanged")
}
