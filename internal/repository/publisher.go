package repository

import (
	"context"

	"study-room/internal/domain"
)

// EventPublisher 把事件发布到房间的广播组。
// 发后即忘：没有订阅者时事件被静默丢弃。
type EventPublisher interface {
	Publish(ctx context.Context, roomCode string, event domain.Event) error
}
