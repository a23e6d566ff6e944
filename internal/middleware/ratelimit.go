package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Limiter 计数并判断 key 在窗口内是否还能通过 (redisstate.RateLimiter 实现)
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 返回一个按客户端 IP 限流的 Gin 中间件。
// 计数存储出错时返回 500。
func RateLimit(limiter Limiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		panic("Limiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 反向代理后面需要配置 gin 的 TrustedProxies 才能拿到真实 IP
		key := c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", key).Error("RateLimit: Limiter failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			return
		}
		if !allowed {
			logrus.WithField("client_ip", key).Warn("RateLimit: Too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
