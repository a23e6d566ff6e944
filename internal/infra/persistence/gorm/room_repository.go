package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"study-room/internal/domain"
	"study-room/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindByCode 实现根据房间码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	return r.findByCode(conn(ctx, r.db), code)
}

// FindByCodeForUpdate 查找房间并加行锁，同一房间的离开/销毁因此串行执行
func (r *GormRoomRepository) FindByCodeForUpdate(ctx context.Context, code string) (*domain.Room, error) {
	return r.findByCode(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), code)
}

func (r *GormRoomRepository) findByCode(db *gorm.DB, code string) (*domain.Room, error) {
	var room domain.Room
	err := db.Where("room_code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// FindByListID 查找引用该列表的房间
func (r *GormRoomRepository) FindByListID(ctx context.Context, listID uint) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).Where("to_do_list_id = ?", listID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by list id %d: %w", listID, err)
	}
	return &room, nil
}

// IsRoomCodeExists 实现检查房间码是否存在
func (r *GormRoomRepository) IsRoomCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Room{}).Where("room_code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// Create 插入新房间。
// 在外层事务中会使用保存点，房间码冲突后外层事务仍然可用 (PostgreSQL 出错后整个事务会被中止)。
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(room).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (room_code: %s): %w", room.RoomCode, err)
	}
	return nil
}

// Delete 级联删除房间及其待办列表。应在事务中调用。
func (r *GormRoomRepository) Delete(ctx context.Context, room *domain.Room) error {
	db := conn(ctx, r.db)

	if err := db.Where("room_id = ?", room.ID).Delete(&domain.RoomParticipant{}).Error; err != nil {
		return fmt.Errorf("gorm: delete participants of room %d: %w", room.ID, err)
	}
	if err := db.Where("room_id = ?", room.ID).Delete(&domain.Membership{}).Error; err != nil {
		return fmt.Errorf("gorm: delete memberships of room %d: %w", room.ID, err)
	}
	// 列表可能已经单独删除，房间照常销毁
	if room.ToDoListID != 0 {
		if _, err := deleteListCascade(db, room.ToDoListID); err != nil {
			return err
		}
	}

	// 只有真正删掉一行才算成功，避免并发下重复销毁
	result := db.Delete(&domain.Room{}, room.ID)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete room %d: %w", room.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// AddParticipant 幂等地加入参与者集合
func (r *GormRoomRepository) AddParticipant(ctx context.Context, roomID, userID uint) error {
	p := domain.RoomParticipant{RoomID: roomID, UserID: userID}
	err := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("gorm: add participant %d to room %d: %w", userID, roomID, err)
	}
	return nil
}

// RemoveParticipant 移出参与者集合
func (r *GormRoomRepository) RemoveParticipant(ctx context.Context, roomID, userID uint) error {
	err := conn(ctx, r.db).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomParticipant{}).Error
	if err != nil {
		return fmt.Errorf("gorm: remove participant %d from room %d: %w", userID, roomID, err)
	}
	return nil
}

// ListParticipants 返回参与者，按加入顺序
func (r *GormRoomRepository) ListParticipants(ctx context.Context, roomID uint) ([]domain.User, error) {
	var users []domain.User
	err := conn(ctx, r.db).
		Joins("JOIN study_session_participants p ON p.user_id = users.id").
		Where("p.room_id = ?", roomID).
		Order("p.created_at, p.user_id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list participants of room %d: %w", roomID, err)
	}
	return users, nil
}

// CountParticipants 返回参与者数量
func (r *GormRoomRepository) CountParticipants(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.RoomParticipant{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count participants of room %d: %w", roomID, err)
	}
	return count, nil
}

// FindEmptyBefore 查找没有参与者的旧房间，供定期清理任务使用
func (r *GormRoomRepository) FindEmptyBefore(ctx context.Context, before time.Time, limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	if limit <= 0 {
		limit = 100
	}
	err := conn(ctx, r.db).
		Where("created_at < ?", before).
		Where("NOT EXISTS (SELECT 1 FROM study_session_participants p WHERE p.room_id = study_sessions.id)").
		Order("id").
		Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find empty rooms before %s: %w", before.Format(time.RFC3339), err)
	}
	return rooms, nil
}
