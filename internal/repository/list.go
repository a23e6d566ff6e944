package repository

import (
	"context"

	"study-room/internal/domain"
)

// ListRepository 定义了待办列表与任务的存储操作 (列表存储)。
type ListRepository interface {
	// CreateList 创建列表。
	CreateList(ctx context.Context, list *domain.List) error

	// FindListByID 查找列表并预加载其任务。
	FindListByID(ctx context.Context, id uint) (*domain.List, error)

	// DeleteList 删除列表及其任务和权限记录。
	DeleteList(ctx context.Context, id uint) error

	// CreateTask 创建任务。
	CreateTask(ctx context.Context, task *domain.Task) error

	// FindTaskByID 查找任务。
	FindTaskByID(ctx context.Context, id uint) (*domain.Task, error)

	// SaveTask 更新任务。
	SaveTask(ctx context.Context, task *domain.Task) error

	// DeleteTask 删除任务。
	DeleteTask(ctx context.Context, id uint) error
}
