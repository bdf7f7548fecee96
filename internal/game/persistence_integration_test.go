//go:build integration

package game

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, rdb.Ping(ctx).Err(), "redis is not reachable")
	return rdb
}

func TestRedisStateMirror_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	rdb := newRedisClient(t)
	require.NoError(t, rdb.FlushDB(ctx).Err())

	mirror := NewRedisStateMirror(rdb, time.Hour)

	r := startTestGame(t, 5)
	require.True(t, r.proposeTeamLocked("p-0", ids(0, 2)))
	st := r.publicStateLocked()

	require.NoError(t, mirror.Save(ctx, st))

	got, ok, err := mirror.Load(ctx, st.Code)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, st, got)

	ttl, err := rdb.TTL(ctx, "room:"+st.Code+":state").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	require.NoError(t, mirror.Delete(ctx, st.Code))
	_, ok, err = mirror.Load(ctx, st.Code)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStateMirror_MissingRoom(t *testing.T) {
	rdb := newRedisClient(t)
	mirror := NewRedisStateMirror(rdb, time.Minute)

	_, ok, err := mirror.Load(context.Background(), "NONE!")
	require.NoError(t, err)
	require.False(t, ok)
}
