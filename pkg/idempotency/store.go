package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore claims idempotency keys with SetNX so concurrent creations of
// the same key collapse onto one payment id.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, key, paymentID string) (string, bool, error) {
	ok, err := s.rdb.SetNX(ctx, redisKey(key), paymentID, s.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return paymentID, true, nil
	}
	winner, err := s.rdb.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Claim expired between SetNX and Get; try again.
			return s.Claim(ctx, key, paymentID)
		}
		return "", false, err
	}
	return winner, false, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, redisKey(key)).Err()
}

func redisKey(k string) string {
	return "idem:payment:" + k
}

// MemoryStore backs tests and demo mode, where no Redis is configured.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]string)}
}

func (s *MemoryStore) Claim(_ context.Context, key, paymentID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if winner, ok := s.keys[key]; ok {
		return winner, false, nil
	}
	s.keys[key] = paymentID
	return paymentID, true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
