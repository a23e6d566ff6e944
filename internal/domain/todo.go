package domain

import "time"

// List 是一个待办列表；房间列表的 IsShared 为 true。
type List struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:255;not null"`
	IsShared bool   `gorm:"not null;default:false"`
	Tasks    []Task `gorm:"foreignKey:ListID"`
}

// TableName 列表表名
func (List) TableName() string { return "todo_lists" }

// Task 是列表中的一条任务。
type Task struct {
	ID           uint      `gorm:"primaryKey"`
	ListID       uint      `gorm:"index;not null"`
	Title        string    `gorm:"size:255;not null"`
	Content      string    `gorm:"type:text"`
	IsCompleted  bool      `gorm:"not null;default:false"`
	CreationDate time.Time `gorm:"autoCreateTime"`
}

// TableName 任务表名
func (Task) TableName() string { return "todo_tasks" }

// Permission 记录某个用户可以访问哪个列表。
type Permission struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex:idx_permission_user_list;not null"`
	ListID uint `gorm:"uniqueIndex:idx_permission_user_list;not null"`
}

// TableName 权限表名
func (Permission) TableName() string { return "todo_permissions" }
