package repository

import (
	"context"

	"study-room/internal/domain"
)

// UserRepository 定义了用户目录的查询与统计更新操作。
type UserRepository interface {
	// FindByID 根据用户 ID 查找用户。
	// 如果用户不存在，返回 ErrUserNotFound。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByIDForUpdate 在事务中查找并锁定用户行，用于串行化同一用户的房间操作。
	FindByIDForUpdate(ctx context.Context, id uint) (*domain.User, error)

	// Save 保存用户信息 (创建或更新)。
	Save(ctx context.Context, user *domain.User) error
}
