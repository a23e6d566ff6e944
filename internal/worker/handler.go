package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"study-room/internal/tasks"
)

// RoomSweeper 删除长时间没有参与者的房间 (service.RoomService 实现)
type RoomSweeper interface {
	SweepEmptyRooms(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// RoomSweepHandler 处理清理空房间任务
type RoomSweepHandler struct {
	sweeper RoomSweeper
}

// NewRoomSweepHandler 创建 Handler 实例
func NewRoomSweepHandler(sweeper RoomSweeper) *RoomSweepHandler {
	if sweeper == nil {
		panic("RoomSweeper cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{sweeper: sweeper}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	payload, err := tasks.ParseRoomSweepPayload(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	deleted, err := h.sweeper.SweepEmptyRooms(ctx, payload.Grace(), payload.Limit)
	if err != nil {
		logCtx.WithError(err).Error("Room sweep failed")
		return fmt.Errorf("sweep empty rooms: %w", err)
	}
	logCtx.WithField("deleted", deleted).Info("Room sweep task processed successfully")
	return nil
}
