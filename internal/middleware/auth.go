package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// UserIDKey 是认证用户 ID 在 gin.Context 中的键
const UserIDKey = "user_id"

// ErrMissingAuthHeader 表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，验证 HS256 签名的 Bearer token 并把 user_id 写入上下文。
// 令牌由外部账户服务签发，这里只做校验。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		logCtx := logrus.WithFields(logrus.Fields{"path": c.FullPath(), "client_ip": c.ClientIP()})

		// 1. 提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			logCtx.WithError(err).Warn("Auth middleware: Missing or malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User must be logged in"})
			return
		}

		// 2. 校验签名和有效期
		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Auth middleware: Token is expired")
			} else {
				logCtx.WithError(err).Warn("Auth middleware: Invalid token")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. 取出 user_id (JSON 数字解码为 float64)
		userID, err := userIDFromClaims(claims)
		if err != nil {
			logCtx.WithError(err).Warn("Auth middleware: Token carries no usable user_id")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, userID)
		logCtx.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// extractToken 从 "Bearer <token>" 形式的头中取出 token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

func validateToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token or claims type")
	}
	return claims, nil
}

func userIDFromClaims(claims jwt.MapClaims) (uint, error) {
	raw, ok := claims[UserIDKey]
	if !ok {
		return 0, errors.New("user_id claim missing")
	}
	f, ok := raw.(float64)
	if !ok || f <= 0 || f != float64(uint(f)) {
		return 0, fmt.Errorf("user_id claim is not a positive integer: %v", raw)
	}
	return uint(f), nil
}
