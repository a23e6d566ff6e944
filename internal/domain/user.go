// Package domain 定义了学习房间服务使用的数据结构 (数据库模型)。
package domain

import "time"

// User 表示应用程序中的用户 (由用户目录维护，这里只关心统计字段)。
type User struct {
	ID            uint       `gorm:"primaryKey"`                                          // 用户唯一标识符 (主键)
	Username      string     `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"` // 用户名，例如 "@alice"
	Email         string     `gorm:"type:varchar(191);uniqueIndex:idx_email"`
	HoursStudied  int        `gorm:"not null;default:0"` // 累计学习小时数 (整小时)
	TotalSessions int        `gorm:"not null;default:0"` // 累计完成的学习会话数
	Streaks       int        `gorm:"not null;default:0"` // 连续学习天数
	LastStudyDate *time.Time `gorm:"type:date"`          // 最近一次学习的日期，从未学习过为 nil
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
}

// UpdateStudyStreak 根据 today 更新连续学习天数。
// 同一天重复调用不做任何修改；昨天学习过则 +1；否则重置为 1。
// 返回 true 表示字段发生了变化，需要保存。
func (u *User) UpdateStudyStreak(today time.Time) bool {
	day := truncateToDay(today)
	if u.LastStudyDate != nil {
		last := truncateToDay(u.LastStudyDate.In(today.Location()))
		if last.Equal(day) {
			return false
		}
		if last.Equal(day.AddDate(0, 0, -1)) {
			u.Streaks++
			u.LastStudyDate = &day
			return true
		}
	}
	u.Streaks = 1
	u.LastStudyDate = &day
	return true
}

// RecordStudyTime 把一次会话时长累计到用户统计中。
// 只计整小时；时长为 0 的会话不计入会话总数。
func (u *User) RecordStudyTime(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	u.HoursStudied += int(elapsed / time.Hour)
	u.TotalSessions++
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
