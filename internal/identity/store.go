package identity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists revocation cutoffs and deleted identities.
type SessionStore interface {
	RevokedBefore(ctx context.Context, id string) (time.Time, bool, error)
	SetRevokedBefore(ctx context.Context, id string, at time.Time) error
	MarkDeleted(ctx context.Context, id string) error
	IsDeleted(ctx context.Context, id string) (bool, error)
}

// RedisSessionStore keeps session state in Redis so every API instance sees
// revocations immediately.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a RedisSessionStore.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func revokedKey(id string) string {
	return "identity:revoked_before:" + id
}

func deletedKey(id string) string {
	return "identity:deleted:" + id
}

func (s *RedisSessionStore) RevokedBefore(ctx context.Context, id string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, revokedKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(secs, 0), true, nil
}

func (s *RedisSessionStore) SetRevokedBefore(ctx context.Context, id string, at time.Time) error {
	return s.client.Set(ctx, revokedKey(id), strconv.FormatInt(at.Unix(), 10), 0).Err()
}

func (s *RedisSessionStore) MarkDeleted(ctx context.Context, id string) error {
	return s.client.Set(ctx, deletedKey(id), "1", 0).Err()
}

func (s *RedisSessionStore) IsDeleted(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, deletedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemorySessionStore is a process-local SessionStore used when Redis is not
// configured.
type MemorySessionStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	deleted map[string]bool
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		revoked: make(map[string]time.Time),
		deleted: make(map[string]bool),
	}
}

func (s *MemorySessionStore) RevokedBefore(_ context.Context, id string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.revoked[id]
	return at, ok, nil
}

func (s *MemorySessionStore) SetRevokedBefore(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[id] = at
	return nil
}

func (s *MemorySessionStore) MarkDeleted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
	return nil
}

func (s *MemorySessionStore) IsDeleted(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted[id], nil
}
