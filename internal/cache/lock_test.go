package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "task:1", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "task:1", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := l.TryLock(ctx, "task:2", time.Minute)
	require.NoError(t, err, "different keys do not conflict")
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))

	again, err := l.TryLock(ctx, "task:1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker(t *testing.T) {
	mr, manager := setupTestRedis(t)
	l := NewRedisLocker(manager)
	exerciseLocker(t, l)

	ctx := context.Background()
	stale, err := l.TryLock(ctx, "task:3", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := l.TryLock(ctx, "task:3", time.Minute)
	require.NoError(t, err, "expired lock can be reacquired")

	require.NoError(t, stale(ctx))
	_, err = l.TryLock(ctx, "task:3", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld, "stale unlock must not release the new holder")
	require.NoError(t, fresh(ctx))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	exerciseLocker(t, l)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.clock = func() time.Time { return now }

	ctx := context.Background()
	stale, err := l.TryLock(ctx, "task:3", time.Second)
	require.NoError(t, err)
	now = now.Add(2 * time.Second)

	fresh, err := l.TryLock(ctx, "task:3", time.Minute)
	require.NoError(t, err)
	require.NoError(t, stale(ctx))

	_, err = l.TryLock(ctx, "task:3", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
	require.NoError(t, fresh(ctx))
}

func TestNewLocker(t *testing.T) {
	_, ok := NewLocker(nil).(*LocalLocker)
	assert.True(t, ok)
}
