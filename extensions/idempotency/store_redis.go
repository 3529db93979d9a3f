package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix  = "mps:escrow:idem:"
	defaultLockTTL      = 2 * time.Minute
	defaultPollInterval = 100 * time.Millisecond
)

// RedisStore is a Store shared by every instance using the same Redis.
//
// Results live under <prefix>result:<key> for ttl. The in-flight marker is a
// SETNX lock under <prefix>lock:<key> that expires after the lock TTL so a
// crashed owner cannot block the key forever. Waiters poll.
type RedisStore struct {
	client       redis.UniversalClient
	ttl          time.Duration
	lockTTL      time.Duration
	pollInterval time.Duration
	prefix       string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithLockTTL bounds how long a key can stay in flight.
func WithLockTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.lockTTL = d }
}

// WithPollInterval sets how often waiters check for a result.
func WithPollInterval(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.pollInterval = d }
}

// NewRedisStore creates a store caching results for ttl.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:       client,
		ttl:          ttl,
		lockTTL:      defaultLockTTL,
		pollInterval: defaultPollInterval,
		prefix:       defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) resultKey(key string) string { return s.prefix + "result:" + key }
func (s *RedisStore) lockKey(key string) string   { return s.prefix + "lock:" + key }

func (s *RedisStore) CheckAndMark(ctx context.Context, key string) (Status, []byte, error) {
	result, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
	switch {
	case err == nil:
		return StatusCached, result, nil
	case !errors.Is(err, redis.Nil):
		return StatusNotFound, nil, fmt.Errorf("idempotency: redis get: %w", err)
	}

	acquired, err := s.client.SetNX(ctx, s.lockKey(key), time.Now().Unix(), s.lockTTL).Result()
	if err != nil {
		return StatusNotFound, nil, fmt.Errorf("idempotency: redis setnx: %w", err)
	}
	if !acquired {
		return StatusInFlight, nil, nil
	}
	return StatusNotFound, nil, nil
}

func (s *RedisStore) WaitForResult(ctx context.Context, key string) ([]byte, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		result, err := s.client.Get(ctx, s.resultKey(key)).Bytes()
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("idempotency: redis get: %w", err)
		}
		n, err := s.client.Exists(ctx, s.lockKey(key)).Result()
		if err != nil {
			return nil, fmt.Errorf("idempotency: redis exists: %w", err)
		}
		if n == 0 {
			// Owner failed or its lock expired.
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *RedisStore) Complete(ctx context.Context, key string, result []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(key), result, s.ttl)
		pipe.Del(ctx, s.lockKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("idempotency: redis complete: %w", err)
	}
	return nil
}

func (s *RedisStore) Fail(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("idempotency: redis del: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
