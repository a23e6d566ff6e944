package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
	"study-room/internal/metrics"
	"study-room/internal/repository"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// 名单查询的超时时间
	rosterTimeout = 5 * time.Second
)

// Hub 内部消息类型
const (
	MessageRegister   = "register"
	MessageUnregister = "unregister"
	MessageInbound    = "inbound"
)

// HubMessage 定义了在 Hub 内部通道传递的消息
type HubMessage struct {
	Type     string  // register / unregister / inbound
	RoomCode string  // 房间码
	Client   *Client // 消息来源的客户端
	RawData  []byte  // 仅用于 inbound (原始 WebSocket 文本帧)
}

// RosterReader 是 Hub 读取房间名单所需的存储操作 (repository.RoomRepository 的子集)
type RosterReader interface {
	FindByCode(ctx context.Context, code string) (*domain.Room, error)
	ListParticipants(ctx context.Context, roomID uint) ([]domain.User, error)
}

// Hub 维护每个房间的广播组 (本节点上的连接集合)，并协调连接事件。
// Hub 本身实现 repository.EventPublisher (单节点内存广播)；
// 多节点部署时通过 SetPublisher 换成 Redis 事件总线，总线再回调 Broadcast。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}

	// map[roomCode]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	roster    RosterReader
	publisher repository.EventPublisher
	metrics   *metrics.Metrics
}

// NewHub 创建并返回一个新的 Hub 实例。m 可以为 nil。
func NewHub(roster RosterReader, m *metrics.Metrics) *Hub {
	if roster == nil {
		panic("RosterReader cannot be nil for Hub")
	}
	h := &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		rooms:       make(map[string]map[*Client]bool),
		roster:      roster,
		metrics:     m,
	}
	h.publisher = h
	return h
}

// SetPublisher 替换 Hub 发布事件的方式 (必须在 Run 之前调用)
func (h *Hub) SetPublisher(p repository.EventPublisher) {
	if p == nil {
		panic("EventPublisher cannot be nil for Hub")
	}
	h.publisher = p
}

// Run 启动 Hub 的主事件处理循环，直到 ctx 取消。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MessageRegister:
				h.registerClient(msg.Client)
			case MessageUnregister:
				h.unregisterClient(msg.Client)
			case MessageInbound:
				// 在主循环内按到达顺序转发，保证同一连接的消息不乱序
				h.handleInbound(msg)
			default:
				log.Warnf("Hub: Received unknown message type: %s in room %s", msg.Type, msg.RoomCode)
			}
		}
	}
}

// registerClient 把客户端加入房间广播组，并向整个组推送最新名单
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"client_id": client.ID(),
		"action":    "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomCode]; !ok {
		h.rooms[client.roomCode] = make(map[*Client]bool)
		logCtx.Info("Client group created for room")
	}
	h.rooms[client.roomCode][client] = true
	roomCount := len(h.rooms)
	h.roomsMu.Unlock()

	h.metrics.SocketOpened()
	h.metrics.SetHubRooms(roomCount)
	logCtx.Info("Client registered to Hub")

	go h.refreshRoster(client.roomCode)
}

// unregisterClient 把客户端移出广播组并重新广播名单。
// 只反映连接的变化，不修改房间的参与者集合。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": client.RoomCode(),
		"client_id": client.ID(),
		"action":    "unregisterClient",
	})

	h.roomsMu.Lock()
	roomClients, ok := h.rooms[client.roomCode]
	if !ok || !roomClients[client] {
		h.roomsMu.Unlock()
		logCtx.Warn("Client not found in room during unregister")
		return
	}
	delete(roomClients, client)
	// 关闭 send 通道，WritePump 随之退出
	close(client.send)
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomCode)
		logCtx.Info("Room empty, removed from Hub")
	}
	roomCount := len(h.rooms)
	h.roomsMu.Unlock()

	h.metrics.SocketClosed()
	h.metrics.SetHubRooms(roomCount)
	logCtx.Info("Client unregistered from Hub")

	go h.refreshRoster(client.roomCode)
}

// closeAll 在关闭时断开所有客户端
func (h *Hub) closeAll() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for code, clients := range h.rooms {
		for client := range clients {
			close(client.send)
			h.metrics.SocketClosed()
		}
		delete(h.rooms, code)
	}
	h.metrics.SetHubRooms(0)
}

// handleInbound 处理客户端发来的文本帧
func (h *Hub) handleInbound(msg HubMessage) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": msg.RoomCode,
		"operation": "handleInbound",
	})
	if msg.Client != nil {
		logCtx = logCtx.WithField("client_id", msg.Client.ID())
	}

	var in domain.ClientMessage
	if err := json.Unmarshal(msg.RawData, &in); err != nil {
		logCtx.WithError(err).Warn("Failed to unmarshal client message, dropping")
		return
	}
	if in.Type == domain.EventUpdateParticipants {
		// 名单查询走存储，不阻塞主循环
		go h.refreshRoster(msg.RoomCode)
		return
	}
	event, ok := in.RelayEvent()
	if !ok {
		logCtx.WithField("type", in.Type).Warn("Unknown client message type or missing fields, dropping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rosterTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, msg.RoomCode, event); err != nil {
		logCtx.WithError(err).Warn("Failed to relay client message")
		return
	}
	h.metrics.EventPublished(event.EventType())
	logCtx.WithField("type", in.Type).Debug("Client message relayed")
}

// refreshRoster 读取房间名单并推送给广播组
func (h *Hub) refreshRoster(roomCode string) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": roomCode, "operation": "refreshRoster"})
	ctx, cancel := context.WithTimeout(context.Background(), rosterTimeout)
	defer cancel()

	room, err := h.roster.FindByCode(ctx, roomCode)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Debug("Room no longer exists, skipping roster refresh")
			return
		}
		logCtx.WithError(err).Error("Failed to find room for roster refresh")
		return
	}
	users, err := h.roster.ListParticipants(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list participants for roster refresh")
		return
	}
	event := domain.NewParticipantsUpdate(domain.ParticipantsFromUsers(users))
	if err := h.publisher.Publish(ctx, roomCode, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish roster")
		return
	}
	h.metrics.EventPublished(event.EventType())
}

// --- 公共方法 ---

// Publish 把事件序列化后广播给本节点上的房间连接 (实现 repository.EventPublisher)
func (h *Hub) Publish(_ context.Context, roomCode string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("hub: failed to marshal %s event: %w", event.EventType(), err)
	}
	h.Broadcast(roomCode, payload)
	return nil
}

// Broadcast 把消息发送给房间内的所有客户端 (包括发送者)。
// 发送是非阻塞的；没有连接时消息被丢弃。
func (h *Hub) Broadcast(roomCode string, message []byte) {
	// 持有读锁发送，unregister 需要写锁才能关闭 send 通道
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	roomClients, ok := h.rooms[roomCode]
	if !ok || len(roomClients) == 0 {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code":       roomCode,
		"message_size":    len(message),
		"recipient_count": len(roomClients),
	})
	logCtx.Debug("Broadcasting message to clients")

	for client := range roomClients {
		select {
		case client.send <- message:
		default:
			// 慢客户端：跳过，由它自己的 WritePump 处理后续问题
			logCtx.WithField("client_id", client.ID()).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_code":    msg.RoomCode,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ClientCount 返回房间在本节点上的连接数
func (h *Hub) ClientCount(roomCode string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomCode])
}
