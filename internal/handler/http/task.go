package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-room/internal/dto"
	"study-room/internal/service"
)

// TaskHandler 处理房间共享待办列表上的任务请求
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler 创建 TaskHandler 实例
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	if taskService == nil {
		panic("TaskService cannot be nil for TaskHandler")
	}
	return &TaskHandler{taskService: taskService}
}

// GetList 返回指定列表及其任务 (以数组形式，与个人列表接口保持一致)
func (h *TaskHandler) GetList(c *gin.Context) {
	listID, ok := paramID(c, "id")
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "Invalid list id")
		return
	}
	list, err := h.taskService.GetList(c.Request.Context(), listID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, []dto.ListResponse{dto.NewListResponse(list)})
}

// CreateTask 新建任务
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleTaskError(c, err)
		return
	}
	task, err := h.taskService.CreateTask(c.Request.Context(), req.ListID, req.Title, req.Content)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.CreateTaskResponse{
		ListID:      task.ListID,
		ID:          task.ID,
		Title:       task.Title,
		Content:     task.Content,
		IsCompleted: task.IsCompleted,
	})
}

// ToggleTask 切换任务完成状态
func (h *TaskHandler) ToggleTask(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, service.ErrTaskNotFound.Error())
		return
	}
	task, err := h.taskService.ToggleTask(c.Request.Context(), taskID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.ToggleTaskResponse{IsCompleted: task.IsCompleted})
}

// DeleteTask 删除任务
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := paramID(c, "id")
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, service.ErrTaskNotFound.Error())
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), taskID); err != nil {
		handleTaskError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.DeleteTaskResponse{Data: taskID})
}
