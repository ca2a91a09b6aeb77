// Package redisstore implements [store.Store] on Redis.
//
// Values map to Redis strings, lists to Redis lists (RPUSH, read back newest
// first) and member sets to Redis sets. Every key is namespaced with the
// configured prefix so several vaults can share one Redis database.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goVault/store"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any Redis transport or server failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "gv"

// Store is a Redis-backed [store.Store]. The client is owned by the caller;
// Close does not close it.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New returns a Store using client. An empty prefix selects "gv".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	return s.prefix + ":" + k
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Append implements store.Store.
func (s *Store) Append(ctx context.Context, key string, value []byte) error {
	if err := s.redis.RPush(ctx, s.key(key), value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, key string, limit int) ([][]byte, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raw, err := s.redis.LRange(ctx, s.key(key), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([][]byte, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		out = append(out, []byte(raw[i]))
	}
	return out, nil
}

// AddMember implements store.Store.
func (s *Store) AddMember(ctx context.Context, key, member string) error {
	if err := s.redis.SAdd(ctx, s.key(key), member).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RemoveMember implements store.Store.
func (s *Store) RemoveMember(ctx context.Context, key, member string) error {
	if err := s.redis.SRem(ctx, s.key(key), member).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Members implements store.Store.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return members, nil
}

// Close is a no-op; the Redis client belongs to the caller.
func (s *Store) Close() error { return nil }

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
