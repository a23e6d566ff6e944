package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"study-room/internal/domain"
	"study-room/internal/repository"
)

// GormMembershipRepository 是 MembershipRepository 接口的 GORM 实现
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository 创建 GormMembershipRepository 实例
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMembershipRepository")
	}
	return &GormMembershipRepository{db: db}
}

// FindActiveByUser 返回用户的所有活跃成员资格，按房间排序
func (r *GormMembershipRepository) FindActiveByUser(ctx context.Context, userID uint) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := conn(ctx, r.db).
		Where("user_id = ? AND left_at IS NULL", userID).
		Order("room_id, id").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find active memberships of user %d: %w", userID, err)
	}
	return memberships, nil
}

// FindActiveByUserAndRoom 返回用户在指定房间的活跃成员资格
func (r *GormMembershipRepository) FindActiveByUserAndRoom(ctx context.Context, userID, roomID uint) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := conn(ctx, r.db).
		Where("user_id = ? AND room_id = ? AND left_at IS NULL", userID, roomID).
		Order("id").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find active memberships of user %d in room %d: %w", userID, roomID, err)
	}
	return memberships, nil
}

// CountActiveByUser 返回活跃成员资格数量
func (r *GormMembershipRepository) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Membership{}).
		Where("user_id = ? AND left_at IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active memberships of user %d: %w", userID, err)
	}
	return count, nil
}

// CountJoins 统计历史表中的加入次数
func (r *GormMembershipRepository) CountJoins(ctx context.Context, userID, roomID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.MembershipRecord{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count joins of user %d in room %d: %w", userID, roomID, err)
	}
	return count, nil
}

// Create 插入成员资格并追加历史记录
func (r *GormMembershipRepository) Create(ctx context.Context, membership *domain.Membership) error {
	db := conn(ctx, r.db)
	if err := db.Create(membership).Error; err != nil {
		if isDuplicateEntryError(err) {
			// 活跃成员资格唯一索引 (PostgreSQL/SQLite)
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create membership (user %d, room %d): %w", membership.UserID, membership.RoomID, err)
	}
	record := domain.MembershipRecord{
		MembershipID: membership.ID,
		UserID:       membership.UserID,
		RoomID:       membership.RoomID,
		JoinSequence: membership.JoinSequence,
		JoinedAt:     membership.JoinedAt,
		LeftAt:       membership.LeftAt,
	}
	if err := db.Create(&record).Error; err != nil {
		return fmt.Errorf("gorm: append membership record (membership %d): %w", membership.ID, err)
	}
	return nil
}

// Close 写入历史记录的离开时间并删除成员资格行
func (r *GormMembershipRepository) Close(ctx context.Context, membership *domain.Membership) error {
	db := conn(ctx, r.db)
	err := db.Model(&domain.MembershipRecord{}).
		Where("membership_id = ?", membership.ID).
		Update("left_at", membership.LeftAt).Error
	if err != nil {
		return fmt.Errorf("gorm: stamp membership record (membership %d): %w", membership.ID, err)
	}
	result := db.Delete(&domain.Membership{}, membership.ID)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete membership %d: %w", membership.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMembershipNotFound
	}
	return nil
}
