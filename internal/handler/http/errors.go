package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"study-room/internal/service"
)

// HandleServiceError 把房间操作的错误转换为 HTTP 响应。
// op 用于拼接 "Failed to <op>: <detail>" 形式的 400 错误信息。
func HandleServiceError(c *gin.Context, op string, err error) {
	logCtx := logrus.WithFields(logrus.Fields{"operation": op, "path": c.FullPath()})
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrNotInSession):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		logCtx.WithError(err).Warn("Request failed")
		ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("Failed to %s: %v", op, err))
	}
}

// handleTaskError 列表/任务操作的错误统一返回 400
func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrListNotFound), errors.Is(err, service.ErrTaskNotFound):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Warn("Task request failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
	}
}
