package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "test:"}, mr
}

func TestAllowCountsDownThenRejects(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, 1-i, remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	limiter, mr := newLimiter(t)
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 3; i++ {
		_, _, _, err := limiter.Allow(ctx, "key", window, 2)
		require.NoError(t, err)
	}
	mr.FastForward(window)

	allowed, _, _, err := limiter.Allow(ctx, "key", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	_, _, _, err := limiter.Allow(ctx, "a", time.Second, 1)
	require.NoError(t, err)

	allowed, _, _, err := limiter.Allow(ctx, "b", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowWithoutClientPermitsEverything(t *testing.T) {
	limiter := Limiter{}
	for i := 0; i < 10; i++ {
		allowed, _, _, err := limiter.Allow(context.Background(), "key", time.Second, 1)
		require.NoError(t, err)
		require.True(t, allowed)
	}
}
