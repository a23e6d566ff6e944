package domain

import "time"

// Membership 表示用户在某个房间中的一次参与 (SessionUser)。
// LeftAt 为 nil 的记录是"活跃"成员资格；每个用户在所有房间中至多一条。
// 关闭后该行会被删除，历史由 MembershipRecord 保留。
type Membership struct {
	ID           uint       `gorm:"primaryKey"`
	UserID       uint       `gorm:"index;not null"`
	RoomID       uint       `gorm:"index;not null"`
	JoinSequence uint       `gorm:"not null;default:1"` // 该 (用户, 房间) 组合的第几次加入
	JoinedAt     time.Time  `gorm:"not null"`
	LeftAt       *time.Time // 离开时间，活跃时为 nil
}

// TableName 成员资格表
func (Membership) TableName() string { return "session_users" }

// IsActive 是否为活跃成员资格
func (m *Membership) IsActive() bool { return m.LeftAt == nil }

// Close 在 now 时刻关闭成员资格并返回本次会话的时长。
// 已经设置过 LeftAt 的以 LeftAt 为准。
func (m *Membership) Close(now time.Time) time.Duration {
	if m.LeftAt == nil {
		m.LeftAt = &now
	}
	return m.LeftAt.Sub(m.JoinedAt)
}

// MembershipRecord 是成员资格的只追加历史记录，用于计算加入序号。
type MembershipRecord struct {
	ID           uint       `gorm:"primaryKey"`
	MembershipID uint       `gorm:"index;not null"` // 对应的 session_users.id (该行被删除后仍保留)
	UserID       uint       `gorm:"index:idx_record_user_room;not null"`
	RoomID       uint       `gorm:"index:idx_record_user_room;not null"`
	JoinSequence uint       `gorm:"not null"`
	JoinedAt     time.Time  `gorm:"not null"`
	LeftAt       *time.Time
}

// TableName 历史表
func (MembershipRecord) TableName() string { return "session_user_history" }
