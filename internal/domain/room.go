package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	// RoomCodeLength 房间码长度
	RoomCodeLength = 8
	// RoomCodeAlphabet 房间码字符集：大写字母 + 数字
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultSessionName 请求中缺少 sessionName 字段时使用
	DefaultSessionName = "Untitled Study Session - maybe something went wrong?"
	// EmptySessionName sessionName 为空字符串时使用
	EmptySessionName = "We couldn't think of anything :)"
	// RoomListName 房间自动创建的共享待办列表名称
	RoomListName = "TaskTrack: Study Edition"
)

// Room 表示一个学习房间 (StudySession)。
type Room struct {
	ID          uint       `gorm:"primaryKey"`                                            // 房间唯一标识符 (主键)
	CreatorID   uint       `gorm:"index;not null"`                                        // 创建者用户 ID
	SessionName string     `gorm:"size:255;not null"`                                     // 房间显示名称
	RoomCode    string     `gorm:"type:varchar(8);uniqueIndex:idx_room_code;not null"`    // 8 位房间码，全局唯一，分配后不可修改
	StartTime   time.Time  `gorm:"not null"`                                              // 开始时间
	EndTime     *time.Time                                                               // 结束时间 (可空)
	Date        time.Time  `gorm:"type:date;not null"`                                    // 创建日期
	ToDoListID  uint       `gorm:"index;not null"`                                        // 关联的共享待办列表
	CreatedAt   time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

// TableName 保持与房间/会话命名一致
func (Room) TableName() string { return "study_sessions" }

// RoomParticipant 是房间当前参与者集合 (多对多关联表)。
type RoomParticipant struct {
	RoomID    uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"` // 加入参与者集合的时间，用于名单排序
}

// TableName 关联表名
func (RoomParticipant) TableName() string { return "study_session_participants" }

// GenerateRoomCode 从 src 读取随机字节生成一个房间码。
// src 为 nil 时使用 crypto/rand。
func GenerateRoomCode(src io.Reader) (string, error) {
	if src == nil {
		src = rand.Reader
	}
	const n = len(RoomCodeAlphabet)
	// 拒绝采样，避免取模偏差
	const limit = 256 - 256%n
	code := make([]byte, 0, RoomCodeLength)
	buf := make([]byte, RoomCodeLength*2)
	for len(code) < RoomCodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, RoomCodeAlphabet[int(b)%n])
			if len(code) == RoomCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// IsValidRoomCode 检查 code 是否符合房间码格式。
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// ResolveSessionName 按照请求中的名字返回最终的房间名。
// name 为 nil 表示请求中没有该字段。
func ResolveSessionName(name *string) string {
	if name == nil {
		return DefaultSessionName
	}
	if *name == "" {
		return EmptySessionName
	}
	return *name
}
