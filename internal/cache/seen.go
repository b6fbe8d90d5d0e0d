package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 👀 已处理条目集合
// =============================================================================

// SeenSet 记录已处理的采集条目，按来源隔离
type SeenSet interface {
	Seen(ctx context.Context, origin string, id int64) (bool, error)
	MarkSeen(ctx context.Context, origin string, id int64) error
}

// HitRecorder 接收命中统计，由 metrics.Collector 实现
type HitRecorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const seenCacheType = "seen_items"

func seenKey(origin string, id int64) string {
	return "seen:" + origin + ":" + strconv.FormatInt(id, 10)
}

// RedisSeenSet 基于 Redis 的 SeenSet，每个条目一个带 TTL 的键
type RedisSeenSet struct {
	m        *Manager
	ttl      time.Duration
	recorder HitRecorder
}

// NewRedisSeenSet creates a SeenSet backed by m. ttl <= 0 keeps entries
// for 7 days.
func NewRedisSeenSet(m *Manager, ttl time.Duration, recorder HitRecorder) *RedisSeenSet {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisSeenSet{m: m, ttl: ttl, recorder: recorder}
}

func (s *RedisSeenSet) Seen(ctx context.Context, origin string, id int64) (bool, error) {
	ok, err := s.m.Exists(ctx, seenKey(origin, id))
	if err != nil {
		return false, err
	}
	record(s.recorder, ok)
	return ok, nil
}

func (s *RedisSeenSet) MarkSeen(ctx context.Context, origin string, id int64) error {
	return s.m.Set(ctx, seenKey(origin, id), "1", s.ttl)
}

// MemorySeenSet 进程内 SeenSet，未配置 Redis 时使用
type MemorySeenSet struct {
	mu       sync.Mutex
	items    map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
	recorder HitRecorder
}

// NewMemorySeenSet creates an in-process SeenSet.
func NewMemorySeenSet(ttl time.Duration, recorder HitRecorder) *MemorySeenSet {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MemorySeenSet{items: make(map[string]time.Time), ttl: ttl, now: time.Now, recorder: recorder}
}

func (s *MemorySeenSet) Seen(_ context.Context, origin string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seenKey(origin, id)
	exp, ok := s.items[key]
	if ok && !s.now().Before(exp) {
		delete(s.items, key)
		ok = false
	}
	record(s.recorder, ok)
	return ok, nil
}

func (s *MemorySeenSet) MarkSeen(_ context.Context, origin string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[seenKey(origin, id)] = s.now().Add(s.ttl)
	return nil
}

func record(r HitRecorder, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.RecordCacheHit(seenCacheType)
	} else {
		r.RecordCacheMiss(seenCacheType)
	}
}

// NewSeenSet 选择实现：Manager 可用时走 Redis，否则进程内
func NewSeenSet(m *Manager, ttl time.Duration, recorder HitRecorder, logger *zap.Logger) SeenSet {
	if m != nil {
		return NewRedisSeenSet(m, ttl, recorder)
	}
	if logger != nil {
		logger.Info("redis not configured, using in-process seen set")
	}
	return NewMemorySeenSet(ttl, recorder)
}
