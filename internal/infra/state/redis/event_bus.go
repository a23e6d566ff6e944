package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
)

// EventBus 通过 Redis Pub/Sub 在多个节点之间转发房间事件。
// 实现 repository.EventPublisher。
type EventBus struct {
	client    *redis.Client
	keyPrefix string
}

// NewEventBus 创建 EventBus 实例
func NewEventBus(client *redis.Client, keyPrefix string) *EventBus {
	if client == nil {
		panic("redis client cannot be nil for EventBus")
	}
	if keyPrefix == "" {
		keyPrefix = "sr:" // 默认前缀 "sr:" (study room)
	}
	return &EventBus{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---
func (b *EventBus) roomChannel(roomCode string) string {
	return fmt.Sprintf("%sroom:%s:events", b.keyPrefix, roomCode)
}

func (b *EventBus) roomPattern() string {
	return b.keyPrefix + "room:*:events"
}

// roomCodeFromChannel 从频道名中取出房间码
func (b *EventBus) roomCodeFromChannel(channel string) (string, bool) {
	rest := strings.TrimPrefix(channel, b.keyPrefix+"room:")
	if rest == channel || !strings.HasSuffix(rest, ":events") {
		return "", false
	}
	code := strings.TrimSuffix(rest, ":events")
	return code, code != ""
}

// Publish 将事件序列化后发布到房间频道
func (b *EventBus) Publish(ctx context.Context, roomCode string, event domain.Event) error {
	channel := b.roomChannel(roomCode)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal %s event for room %s: %w", event.EventType(), roomCode, err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"event_type":   event.EventType(),
			"room_code":    roomCode,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// Subscription 是对所有房间频道的模式订阅
type Subscription struct {
	bus    *EventBus
	pubsub *redis.PubSub
}

// Subscribe 订阅所有房间频道，返回前等待 Redis 确认订阅
func (b *EventBus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.client.PSubscribe(ctx, b.roomPattern())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to %s: %w", b.roomPattern(), err)
	}
	logrus.WithField("pattern", b.roomPattern()).Info("Subscribed to room event channels")
	return &Subscription{bus: b, pubsub: pubsub}, nil
}

// Deliver 把收到的每条消息交给 sink，直到 ctx 取消或订阅被关闭
func (s *Subscription) Deliver(ctx context.Context, sink func(roomCode string, payload []byte)) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			code, ok := s.bus.roomCodeFromChannel(msg.Channel)
			if !ok {
				logrus.WithField("channel", msg.Channel).Warn("Received message on unexpected channel, ignoring")
				continue
			}
			sink(code, []byte(msg.Payload))
		}
	}
}

// Close 取消订阅
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
