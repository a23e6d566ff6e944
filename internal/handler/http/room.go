package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"study-room/internal/dto"
	"study-room/internal/service"
)

// RoomHandler 封装了与学习房间生命周期相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	// 1. 认证用户
	userID := currentUserID(c)
	if userID == 0 {
		HandleServiceError(c, "create room", service.ErrUnauthenticated)
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	// 2. 请求体可以为空，sessionName 缺失时使用默认名称
	var req dto.CreateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logCtx.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
			HandleServiceError(c, "create room", err)
			return
		}
	}

	// 3. 调用 Service
	result, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.SessionName)
	if err != nil {
		HandleServiceError(c, "create room", err)
		return
	}

	logCtx.WithField("room_code", result.RoomCode).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusOK, dto.CreateRoomResponse{RoomCode: result.RoomCode, RoomList: result.RoomListID})
}

// JoinRoom 处理加入房间的请求
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		HandleServiceError(c, "join room", service.ErrUnauthenticated)
		return
	}

	var req dto.RoomCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 没有房间码等同于房间不存在
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.JoinRoom: Invalid input format")
		HandleServiceError(c, "join room", service.ErrRoomNotFound)
		return
	}

	if err := h.roomService.JoinRoom(c.Request.Context(), userID, req.RoomCode); err != nil {
		HandleServiceError(c, "join room", err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.MessageResponse{Message: "Joined successfully!"})
}

// LeaveRoom 处理离开房间的请求
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		HandleServiceError(c, "leave room", service.ErrUnauthenticated)
		return
	}

	var req dto.RoomCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.LeaveRoom: Invalid input format")
		HandleServiceError(c, "leave room", service.ErrRoomNotFound)
		return
	}

	username, err := h.roomService.LeaveRoom(c.Request.Context(), userID, req.RoomCode)
	if err != nil {
		HandleServiceError(c, "leave room", err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.LeaveRoomResponse{Message: "Left successfully!", Username: username})
}

// GetRoomDetails 返回房间名称和待办列表 ID；任何错误 (包括房间不存在) 都返回 400
func (h *RoomHandler) GetRoomDetails(c *gin.Context) {
	details, err := h.roomService.GetRoomDetails(c.Request.Context(), c.Query("roomCode"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Failed to retrieve room details: "+err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, dto.RoomDetailsResponse{SessionName: details.SessionName, RoomList: details.RoomListID})
}

// GetParticipants 返回房间当前的参与者名单；任何错误都返回 400
func (h *RoomHandler) GetParticipants(c *gin.Context) {
	names, err := h.roomService.GetParticipants(c.Request.Context(), c.Query("roomCode"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Failed to retrieve participants: "+err.Error())
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NewParticipantsResponse(names))
}
