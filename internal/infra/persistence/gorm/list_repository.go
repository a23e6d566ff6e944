package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"study-room/internal/domain"
	"study-room/internal/repository"
)

// GormListRepository 是 ListRepository 接口的 GORM 实现
type GormListRepository struct {
	db *gorm.DB
}

// NewGormListRepository 创建 GormListRepository 实例
func NewGormListRepository(db *gorm.DB) *GormListRepository {
	if db == nil {
		panic("database connection cannot be nil for GormListRepository")
	}
	return &GormListRepository{db: db}
}

// CreateList 创建列表
func (r *GormListRepository) CreateList(ctx context.Context, list *domain.List) error {
	if err := conn(ctx, r.db).Create(list).Error; err != nil {
		return fmt.Errorf("gorm: create list '%s': %w", list.Name, err)
	}
	return nil
}

// FindListByID 查找列表并预加载任务
func (r *GormListRepository) FindListByID(ctx context.Context, id uint) (*domain.List, error) {
	var list domain.List
	err := conn(ctx, r.db).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&list, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrListNotFound
		}
		return nil, fmt.Errorf("gorm: find list by id %d: %w", id, err)
	}
	return &list, nil
}

// DeleteList 删除列表及其任务和权限
func (r *GormListRepository) DeleteList(ctx context.Context, id uint) error {
	deleted, err := deleteListCascade(conn(ctx, r.db), id)
	if err != nil {
		return err
	}
	if !deleted {
		return repository.ErrListNotFound
	}
	return nil
}

// deleteListCascade 依次删除任务、权限、列表；返回列表行是否存在
func deleteListCascade(db *gorm.DB, listID uint) (bool, error) {
	if err := db.Where("list_id = ?", listID).Delete(&domain.Task{}).Error; err != nil {
		return false, fmt.Errorf("gorm: delete tasks of list %d: %w", listID, err)
	}
	if err := db.Where("list_id = ?", listID).Delete(&domain.Permission{}).Error; err != nil {
		return false, fmt.Errorf("gorm: delete permissions of list %d: %w", listID, err)
	}
	result := db.Delete(&domain.List{}, listID)
	if result.Error != nil {
		return false, fmt.Errorf("gorm: delete list %d: %w", listID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CreateTask 创建任务
func (r *GormListRepository) CreateTask(ctx context.Context, task *domain.Task) error {
	if err := conn(ctx, r.db).Create(task).Error; err != nil {
		return fmt.Errorf("gorm: create task in list %d: %w", task.ListID, err)
	}
	return nil
}

// FindTaskByID 查找任务
func (r *GormListRepository) FindTaskByID(ctx context.Context, id uint) (*domain.Task, error) {
	var task domain.Task
	err := conn(ctx, r.db).First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTaskNotFound
		}
		return nil, fmt.Errorf("gorm: find task by id %d: %w", id, err)
	}
	return &task, nil
}

// SaveTask 更新任务
func (r *GormListRepository) SaveTask(ctx context.Context, task *domain.Task) error {
	if err := conn(ctx, r.db).Save(task).Error; err != nil {
		return fmt.Errorf("gorm: save task %d: %w", task.ID, err)
	}
	return nil
}

// DeleteTask 删除任务
func (r *GormListRepository) DeleteTask(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&domain.Task{}, id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete task %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}
