package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到某个房间广播组的 WebSocket 客户端。
type Client struct {
	id       string          // 连接 ID
	hub      *Hub            // 指向其所属的 Hub
	conn     *websocket.Conn // WebSocket 连接
	roomCode string          // 客户端所在的房间码
	send     chan []byte     // 用于向此客户端发送消息的缓冲通道
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomCode string) *Client {
	return &Client{
		id:       uuid.NewString(),
		hub:      hub,
		conn:     conn,
		roomCode: roomCode,
		send:     make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"client_id": c.id, "room_code": c.roomCode})
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub。
// 连接断开 (包括读取超时) 时注销客户端。
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: MessageUnregister, RoomCode: c.roomCode, Client: c}
		// 阻塞直到 Hub 收到注销，只有 Hub 已停止时才放弃
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.log().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.log().Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.log().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.log().Debugf("Received raw message (size: %d)", len(message))
		c.hub.QueueMessage(HubMessage{
			Type:     MessageInbound,
			RoomCode: c.roomCode,
			Client:   c,
			RawData:  message,
		})
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log().Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 send 通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) RoomCode() string { return c.roomCode }
func (c *Client) CloseConn()       { c.conn.Close() }
