package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := NewRateLimiter(client, "test:")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}
	ok, err := limiter.Allow(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他 key 不受影响
	ok, err = limiter.Allow(ctx, "5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// 窗口过期后重新计数
	mr.FastForward(2 * time.Minute)
	ok, err = limiter.Allow(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	limiter := NewRateLimiter(client, "")
	mr.Close()
	_, err := limiter.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}
