package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
	"study-room/internal/hub"
	"study-room/internal/service"
)

// RoomFinder 查找房间，用于在升级前确认房间存在
type RoomFinder interface {
	FindRoomByCode(ctx context.Context, roomCode string) (*domain.Room, error)
}

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	rooms    RoomFinder
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时允许所有来源。
func NewWebSocketHandler(h *hub.Hub, rooms RoomFinder, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if rooms == nil {
		panic("RoomFinder cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
	return &WebSocketHandler{upgrader: upgrader, hub: h, rooms: rooms}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/room/:roomCode/ 或 /ws/todolist/:roomCode/
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomCode := c.Param("roomCode")
	logCtx := logrus.WithField("room_code", roomCode)

	// 1. 房间不存在时在升级前拒绝，客户端看到握手失败
	if _, err := h.rooms.FindRoomByCode(c.Request.Context(), roomCode); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logCtx.Warn("WS Handler: Room not found, refusing connection")
			c.AbortWithStatus(http.StatusNotFound)
		} else {
			logCtx.WithError(err).Error("WS Handler: Error checking room existence")
			c.AbortWithStatus(http.StatusInternalServerError)
		}
		return
	}

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	// 3. 注册到 Hub 并启动读写 goroutine
	client := hub.NewClient(h.hub, conn, roomCode)
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MessageRegister, RoomCode: roomCode, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.WithField("client_id", client.ID()).Info("WS Handler: Client connected")
}
