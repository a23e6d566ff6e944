package dto

import (
	"time"

	"study-room/internal/domain"
)

// CreateTaskRequest 新建任务请求
type CreateTaskRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
	ListID  uint   `json:"list_id" binding:"required"`
}

// TaskItem 列表中的任务
type TaskItem struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	IsCompleted  bool      `json:"is_completed"`
	CreationDate time.Time `json:"creation_date"`
}

// ListResponse 待办列表及其任务
type ListResponse struct {
	ID       uint       `json:"id"`
	Name     string     `json:"name"`
	IsShared bool       `json:"is_shared"`
	Tasks    []TaskItem `json:"tasks"`
}

// NewListResponse 把领域列表转换为响应
func NewListResponse(l *domain.List) ListResponse {
	tasks := make([]TaskItem, 0, len(l.Tasks))
	for _, t := range l.Tasks {
		tasks = append(tasks, TaskItem{
			ID:           t.ID,
			Title:        t.Title,
			Content:      t.Content,
			IsCompleted:  t.IsCompleted,
			CreationDate: t.CreationDate,
		})
	}
	return ListResponse{ID: l.ID, Name: l.Name, IsShared: l.IsShared, Tasks: tasks}
}

// CreateTaskResponse 新建任务成功的响应
type CreateTaskResponse struct {
	ListID      uint   `json:"listId"`
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	IsCompleted bool   `json:"is_completed"`
}

// ToggleTaskResponse 切换完成状态后的结果
type ToggleTaskResponse struct {
	IsCompleted bool `json:"is_completed"`
}

// DeleteTaskResponse 删除任务的结果，data 为任务 ID
type DeleteTaskResponse struct {
	Data uint `json:"data"`
}
