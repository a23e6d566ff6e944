package repository

import (
	"context"

	"study-room/internal/domain"
)

// MembershipRepository 定义了成员资格 (SessionUser) 及其历史记录的存储操作。
type MembershipRepository interface {
	// FindActiveByUser 返回用户在所有房间中的活跃成员资格，按房间排序。
	FindActiveByUser(ctx context.Context, userID uint) ([]domain.Membership, error)

	// FindActiveByUserAndRoom 返回用户在指定房间的活跃成员资格。
	FindActiveByUserAndRoom(ctx context.Context, userID, roomID uint) ([]domain.Membership, error)

	// CountActiveByUser 返回活跃成员资格数量。
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)

	// CountJoins 返回 (用户, 房间) 组合的历史加入次数 (包括已关闭的)。
	CountJoins(ctx context.Context, userID, roomID uint) (int64, error)

	// Create 插入成员资格，并追加一条历史记录。
	Create(ctx context.Context, membership *domain.Membership) error

	// Close 给历史记录写入离开时间，然后删除成员资格行。
	Close(ctx context.Context, membership *domain.Membership) error
}
