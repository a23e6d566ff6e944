package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
	"study-room/internal/metrics"
	"study-room/internal/repository"
)

// PresenceService 负责把房间名单和任务变更推送到房间广播组。
// 所有推送都是发后即忘：失败只记录日志，不影响调用方。
type PresenceService struct {
	roomRepo  repository.RoomRepository
	publisher repository.EventPublisher
	metrics   *metrics.Metrics
}

// NewPresenceService 创建 PresenceService 实例。m 可以为 nil。
func NewPresenceService(roomRepo repository.RoomRepository, publisher repository.EventPublisher, m *metrics.Metrics) *PresenceService {
	if roomRepo == nil || publisher == nil {
		panic("RoomRepository and EventPublisher cannot be nil for PresenceService")
	}
	return &PresenceService{roomRepo: roomRepo, publisher: publisher, metrics: m}
}

// Roster 返回房间当前参与者的用户名，按加入顺序
func (s *PresenceService) Roster(ctx context.Context, roomID uint) ([]string, error) {
	users, err := s.roomRepo.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return domain.ParticipantsFromUsers(users), nil
}

// NotifyParticipants 读取房间名单并广播 participants_update
func (s *PresenceService) NotifyParticipants(ctx context.Context, room *domain.Room) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "room_code": room.RoomCode, "operation": "NotifyParticipants"})
	names, err := s.Roster(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load participants for broadcast")
		return
	}
	s.Publish(ctx, room.RoomCode, domain.NewParticipantsUpdate(names))
}

// Publish 发布任意房间事件
func (s *PresenceService) Publish(ctx context.Context, roomCode string, event domain.Event) {
	if err := s.publisher.Publish(ctx, roomCode, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_code":  roomCode,
			"event_type": event.EventType(),
		}).WithError(err).Warn("Failed to publish room event")
		return
	}
	s.metrics.EventPublished(event.EventType())
}
