package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type hitCounter struct {
	hits, misses int
}

func (h *hitCounter) RecordCacheHit(string)  { h.hits++ }
func (h *hitCounter) RecordCacheMiss(string) { h.misses++ }

func exerciseSeenSet(t *testing.T, s SeenSet) {
	t.Helper()
	ctx := context.Background()

	seen, err := s.Seen(ctx, "hackernews", 42)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkSeen(ctx, "hackernews", 42))

	seen, err = s.Seen(ctx, "hackernews", 42)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen(ctx, "other", 42)
	require.NoError(t, err)
	assert.False(t, seen, "origins are isolated")
}

func TestRedisSeenSet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	counter := &hitCounter{}
	s := NewRedisSeenSet(manager, time.Hour, counter)

	exerciseSeenSet(t, s)
	assert.Equal(t, 1, counter.hits)
	assert.Equal(t, 2, counter.misses)

	mr.FastForward(2 * time.Hour)
	seen, err := s.Seen(context.Background(), "hackernews", 42)
	require.NoError(t, err)
	assert.False(t, seen, "entries expire after ttl")
}

func TestMemorySeenSet(t *testing.T) {
	counter := &hitCounter{}
	s := NewMemorySeenSet(time.Hour, counter)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	exerciseSeenSet(t, s)
	assert.Equal(t, 1, counter.hits)

	now = now.Add(time.Hour)
	seen, err := s.Seen(context.Background(), "hackernews", 42)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNewSeenSet_FallsBackToMemory(t *testing.T) {
	_, ok := NewSeenSet(nil, 0, nil, zap.NewNop()).(*MemorySeenSet)
	assert.True(t, ok)

	_, manager := setupTestRedis(t)
	_, ok = NewSeenSet(manager, 0, nil, nil).(*RedisSeenSet)
	assert.True(t, ok)
}
