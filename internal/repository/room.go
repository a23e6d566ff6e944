package repository

import (
	"context"
	"time"

	"study-room/internal/domain"
)

// RoomRepository 定义了房间 (学习会话) 及其参与者集合的存储操作。
type RoomRepository interface {
	// FindByID 根据 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByCode 根据房间码查找房间，不存在时返回 ErrRoomNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// FindByCodeForUpdate 在事务中查找并锁定房间行。
	FindByCodeForUpdate(ctx context.Context, code string) (*domain.Room, error)

	// FindByListID 查找引用该待办列表的房间。
	FindByListID(ctx context.Context, listID uint) (*domain.Room, error)

	// IsRoomCodeExists 检查房间码是否已被使用。
	IsRoomCodeExists(ctx context.Context, code string) (bool, error)

	// Create 插入新房间；房间码冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// Delete 级联删除房间：参与者关联、成员资格、待办列表 (任务、权限) 以及房间本身。
	// 房间已不存在时返回 ErrRoomNotFound。
	Delete(ctx context.Context, room *domain.Room) error

	// AddParticipant 把用户加入参与者集合 (幂等)。
	AddParticipant(ctx context.Context, roomID, userID uint) error

	// RemoveParticipant 把用户移出参与者集合 (不存在时不报错)。
	RemoveParticipant(ctx context.Context, roomID, userID uint) error

	// ListParticipants 返回当前参与者，按加入参与者集合的顺序。
	ListParticipants(ctx context.Context, roomID uint) ([]domain.User, error)

	// CountParticipants 返回参与者数量。
	CountParticipants(ctx context.Context, roomID uint) (int64, error)

	// FindEmptyBefore 查找没有参与者且创建时间早于 before 的房间。
	FindEmptyBefore(ctx context.Context, before time.Time, limit int) ([]domain.Room, error)
}
