package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// 🔒 运行锁
// =============================================================================

// ErrLockHeld 锁已被其他执行持有
var ErrLockHeld = errors.New("lock already held")

// Unlock 释放锁
type Unlock func(ctx context.Context) error

// Locker 非阻塞互斥锁，用于保证同一任务同时只有一次执行
type Locker interface {
	// TryLock 获取锁，已被持有时返回 ErrLockHeld
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// RedisLocker 基于 SET NX PX 与比较删除脚本的分布式锁
type RedisLocker struct {
	m *Manager
}

// NewRedisLocker creates a Locker backed by m.
func NewRedisLocker(m *Manager) *RedisLocker { return &RedisLocker{m: m} }

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	token := uuid.NewString()
	ok, err := l.m.SetNX(ctx, "lock:"+key, token, ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		_, err := l.m.DeleteIfValue(ctx, "lock:"+key, token)
		return err
	}, nil
}

// LocalLocker 进程内锁，ttl 到期后可被重新获取
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localHold
	clock func() time.Time
}

type localHold struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an in-process Locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localHold), clock: time.Now}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, ErrLockHeld
	}
	token := uuid.NewString()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	expires := now.Add(ttl)
	l.held[key] = localHold{token: token, expires: expires}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.held[key]; ok && h.token == token {
			delete(l.held, key)
		}
		return nil
	}, nil
}

// NewLocker 选择实现：Manager 可用时走 Redis，否则进程内
func NewLocker(m *Manager) Locker {
	if m != nil {
		return NewRedisLocker(m)
	}
	return NewLocalLocker()
}
