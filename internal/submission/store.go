package submission

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhe2en832/erp-next-system-sub000/internal/shared"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry   Entry
	expires time.Time
}

// NewMemoryStore builds a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || (s.ttl > 0 && s.now().After(e.expires)) {
		delete(s.entries, key)
		return Entry{State: StateIdle}, nil
	}
	return e.entry, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.State == StateIdle {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = memoryEntry{entry: entry, expires: s.now().Add(s.ttl)}
	return nil
}

// RedisStore keeps entries as JSON strings with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	raw, err := s.client.Get(ctx, shared.SubmissionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{State: StateIdle}, nil
	}
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, entry Entry) error {
	if entry.State == StateIdle {
		return s.client.Del(ctx, shared.SubmissionKey(key)).Err()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, shared.SubmissionKey(key), raw, s.ttl).Err()
}
