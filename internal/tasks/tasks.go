package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeRoomSweep = "room:sweep" // 清理空房间任务类型
)

// RoomSweepPayload 定义了清理任务的数据结构
type RoomSweepPayload struct {
	GraceSeconds int64 `json:"grace_seconds"` // 房间创建后至少经过多久才会被清理
	Limit        int   `json:"limit"`         // 单次最多清理的房间数
}

// Grace 返回宽限期
func (p RoomSweepPayload) Grace() time.Duration {
	return time.Duration(p.GraceSeconds) * time.Second
}

// NewRoomSweepTask 创建一个新的清理任务
func NewRoomSweepTask(grace time.Duration, limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomSweepPayload{GraceSeconds: int64(grace / time.Second), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marshal room sweep payload: %w", err)
	}
	// 同一时刻只保留一个待执行的清理任务
	return asynq.NewTask(TypeRoomSweep, payload, asynq.Unique(time.Minute), asynq.MaxRetry(1)), nil
}

// ParseRoomSweepPayload 解析任务负载
func ParseRoomSweepPayload(t *asynq.Task) (RoomSweepPayload, error) {
	var p RoomSweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, err
	}
	return p, nil
}
