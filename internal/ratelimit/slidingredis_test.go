package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "ratelimit:"}

	ctx := context.Background()
	window := 2 * time.Second

	allowed, remaining, _, err := limiter.Allow(ctx, "tenant-a:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, remaining)

	allowed, remaining, _, err = limiter.Allow(ctx, "tenant-a:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, remaining, _, err = limiter.Allow(ctx, "tenant-a:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)

	// Other keys keep their own budget.
	allowed, _, _, err = limiter.Allow(ctx, "tenant-b:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "tenant-a:10.0.0.1", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, _, _, err := Limiter{}.Allow(context.Background(), "any", time.Second, 5)
	require.NoError(t, err)
	require.True(t, allowed)
}
