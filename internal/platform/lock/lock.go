// Package lock provides short-lived named locks backed by process memory or Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock is held by someone else.
var ErrNotObtained = errors.New("lock not obtained")

// Handle releases an obtained lock.
type Handle interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks. TryObtain fails immediately when the lock is held; Obtain waits until the
// context is done.
type Locker interface {
	TryObtain(ctx context.Context, key string, ttl time.Duration) (Handle, error)
	Obtain(ctx context.Context, key string, ttl time.Duration) (Handle, error)
}

// ============================================================================
// REDIS
// ============================================================================

// Redis implements Locker with bsm/redislock.
type Redis struct {
	client  *redislock.Client
	backoff time.Duration
}

// NewRedis builds a Redis locker.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{client: redislock.New(rdb), backoff: 50 * time.Millisecond}
}

// TryObtain implements Locker.
func (r *Redis) TryObtain(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	return r.obtain(ctx, key, ttl, nil)
}

// Obtain implements Locker.
func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	return r.obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: redislock.LinearBackoff(r.backoff)})
}

func (r *Redis) obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (Handle, error) {
	l, err := r.client.Obtain(ctx, key, ttl, opt)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("platform/lock: obtain %s: %w", key, err)
	}
	return redisHandle{l}, nil
}

type redisHandle struct{ lock *redislock.Lock }

func (h redisHandle) Release(ctx context.Context) error {
	err := h.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// ============================================================================
// MEMORY
// ============================================================================

// Memory implements Locker for a single process. The ttl is ignored.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemory builds an in-process locker.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// TryObtain implements Locker.
func (m *Memory) TryObtain(_ context.Context, key string, _ time.Duration) (Handle, error) {
	ch := m.slot(key)
	select {
	case ch <- struct{}{}:
		return memoryHandle{ch: ch}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
}

// Obtain implements Locker.
func (m *Memory) Obtain(ctx context.Context, key string, _ time.Duration) (Handle, error) {
	ch := m.slot(key)
	select {
	case ch <- struct{}{}:
		return memoryHandle{ch: ch}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
	}
}

type memoryHandle struct{ ch chan struct{} }

func (h memoryHandle) Release(context.Context) error {
	select {
	case <-h.ch:
	default:
	}
	return nil
}
