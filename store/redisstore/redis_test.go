package redisstore

import (
	"context"
	"testing"

	"github.com/MrEthical07/goVault/store"
	"github.com/MrEthical07/goVault/store/storetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisConformance(t *testing.T) {
	_, rdb := newTestRedis(t)
	storetest.Run(t, New(rdb, "test"))
}

func TestRedisKeysArePrefixed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "vault1")

	require.NoError(t, s.Put(context.Background(), "user:1", []byte("x")))
	require.True(t, mr.Exists("vault1:user:1"))
	require.False(t, mr.Exists("user:1"))
}

func TestRedisDefaultPrefix(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "")

	require.NoError(t, s.AddMember(context.Background(), "idx", "m"))
	require.True(t, mr.Exists("gv:idx"))
}

func TestRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := New(rdb, "")
	mr.Close()

	_, err = s.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrRedisUnavailable)
	require.NotErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.Ping(context.Background()), ErrRedisUnavailable)
}
