package http

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentUserID 读取 Auth 中间件写入的用户 ID，没有认证上下文时返回 0
func currentUserID(c *gin.Context) uint {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.WithField("path", c.FullPath()).Error("User ID in context is not uint")
		return 0
	}
	return userID
}

// paramID 解析路径中的数字 ID
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
