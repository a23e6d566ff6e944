package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstate "study-room/internal/infra/state/redis"
)

func limitedRouter(t *testing.T, max int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := gin.New()
	r.Use(RateLimit(redisstate.NewRateLimiter(client, "test:"), max, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r, mr
}

func get(router *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	router, mr := limitedRouter(t, 2)

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.1:1234"))

	// 其他 IP 不受影响
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2:1234"))

	// 窗口过期后恢复
	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1234"))
}

func TestRateLimit_StoreFailure(t *testing.T) {
	router, mr := limitedRouter(t, 2)
	mr.Close()

	assert.Equal(t, http.StatusInternalServerError, get(router, "10.0.0.1:1234"))
}

func TestRateLimit_PanicsOnBadConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := redisstate.NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")

	require.Panics(t, func() { RateLimit(nil, 1, time.Second) })
	require.Panics(t, func() { RateLimit(limiter, 0, time.Second) })
	require.Panics(t, func() { RateLimit(limiter, 1, 0) })
}
