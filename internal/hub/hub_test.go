package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-room/internal/domain"
	"study-room/internal/repository"
)

// fakeRoster 按房间码返回固定的名单
type fakeRoster struct {
	mu    sync.Mutex
	ids   map[string]uint
	users map[uint][]domain.User
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{ids: map[string]uint{}, users: map[uint][]domain.User{}}
}

func (f *fakeRoster) FindByCode(_ context.Context, code string) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &domain.Room{ID: id, RoomCode: code}, nil
}

func (f *fakeRoster) ListParticipants(_ context.Context, roomID uint) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[roomID], nil
}

func (f *fakeRoster) set(code string, names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[code]
	if !ok {
		id = uint(len(f.ids) + 1)
		f.ids[code] = id
	}
	users := make([]domain.User, 0, len(names))
	for _, n := range names {
		users = append(users, domain.User{Username: n})
	}
	f.users[id] = users
}

func startHub(t *testing.T, roster RosterReader) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(roster, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(h, conn, strings.TrimPrefix(r.URL.Path, "/"))
		h.QueueMessage(HubMessage{Type: MessageRegister, RoomCode: client.RoomCode(), Client: client})
		client.Run()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, roomCode string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + roomCode
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil 读取消息直到 match 返回 true
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "timed out waiting for message")
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(map[string]interface{}) bool {
	return func(m map[string]interface{}) bool { return m["type"] == typ }
}

func roster(names ...string) func(map[string]interface{}) bool {
	return func(m map[string]interface{}) bool {
		if m["type"] != domain.EventParticipantsUpdate {
			return false
		}
		got, _ := m["participants"].([]interface{})
		if len(got) != len(names) {
			return false
		}
		for i, n := range names {
			if got[i] != n {
				return false
			}
		}
		return true
	}
}

func TestHub_RegisterPushesRoster(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice")
	h, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	readUntil(t, a, roster("alice"))

	r.set("ROOM0001", "alice", "bob")
	b := dial(t, srv, "ROOM0001")
	readUntil(t, b, roster("alice", "bob"))
	readUntil(t, a, roster("alice", "bob"))

	assert.Eventually(t, func() bool { return h.ClientCount("ROOM0001") == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RelaysChatToWholeGroup(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice", "bob")
	h, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	b := dial(t, srv, "ROOM0001")
	require.Eventually(t, func() bool { return h.ClientCount("ROOM0001") == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_message","message":"hi","sender":"alice"}`)))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, ofType(domain.EventChatMessage))
		assert.Equal(t, "hi", msg["message"])
		assert.Equal(t, "alice", msg["sender"])
	}
}

func TestHub_RelaysOneSendersMessagesInOrder(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice", "bob")
	h, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	b := dial(t, srv, "ROOM0001")
	require.Eventually(t, func() bool { return h.ClientCount("ROOM0001") == 2 }, 2*time.Second, 10*time.Millisecond)

	const n = 100
	for i := 0; i < n; i++ {
		frame := `{"type":"chat_message","message":"` + strconv.Itoa(i) + `","sender":"alice"}`
		require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(frame)))
	}

	for _, conn := range []*websocket.Conn{a, b} {
		for i := 0; i < n; i++ {
			msg := readUntil(t, conn, ofType(domain.EventChatMessage))
			require.Equal(t, strconv.Itoa(i), msg["message"])
		}
	}
}

func TestHub_UnregisterWaitsForFullQueue(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice")
	h := NewHub(r, nil)

	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	remote := dial(t, srv, "ROOM0001")
	client := NewClient(h, <-conns, "ROOM0001")

	// Hub 尚未运行，队列被注册消息和无效帧填满
	require.True(t, h.QueueMessage(HubMessage{Type: MessageRegister, RoomCode: "ROOM0001", Client: client}))
	for h.QueueMessage(HubMessage{Type: MessageInbound, RoomCode: "ROOM0001", Client: client, RawData: []byte(`{}`)}) {
	}

	client.Run()
	require.NoError(t, remote.Close())
	time.Sleep(1200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	// 队列清空后客户端必须已被移出广播组
	assert.Eventually(t, func() bool {
		return len(h.messageChan) == 0 && h.ClientCount("ROOM0001") == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestHub_DropsUnknownAndIncompleteMessages(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice")
	_, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	readUntil(t, a, roster("alice"))

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus","message":"x"}`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_message","sender":"alice"}`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","sender":"alice"}`)))

	msg := readUntil(t, a, func(m map[string]interface{}) bool { return m["type"] != domain.EventParticipantsUpdate })
	assert.Equal(t, domain.EventTyping, msg["type"])
	assert.Equal(t, "alice", msg["sender"])
}

func TestHub_UpdateParticipantsRequestRefreshesRoster(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice")
	_, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	readUntil(t, a, roster("alice"))

	r.set("ROOM0001", "alice", "carol")
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"update_participants"}`)))
	readUntil(t, a, roster("alice", "carol"))
}

func TestHub_DisconnectRebroadcastsRoster(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice", "bob")
	h, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	b := dial(t, srv, "ROOM0001")
	require.Eventually(t, func() bool { return h.ClientCount("ROOM0001") == 2 }, 2*time.Second, 10*time.Millisecond)
	readUntil(t, a, roster("alice", "bob"))

	// 断开连接不会修改参与者集合，名单仍由存储决定
	r.set("ROOM0001", "alice")
	require.NoError(t, b.Close())
	readUntil(t, a, roster("alice"))
	assert.Eventually(t, func() bool { return h.ClientCount("ROOM0001") == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishIsScopedToRoom(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001")
	h, srv := startHub(t, r)

	a := dial(t, srv, "ROOM0001")
	readUntil(t, a, roster())

	require.NoError(t, h.Publish(context.Background(), "OTHER000", domain.DeleteList{Type: domain.EventDeleteList, ListID: 1}))
	require.NoError(t, h.Publish(context.Background(), "ROOM0001", domain.DeleteList{Type: domain.EventDeleteList, ListID: 2}))

	msg := readUntil(t, a, ofType(domain.EventDeleteList))
	assert.Equal(t, float64(2), msg["list_id"])
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	r := newFakeRoster()
	r.set("ROOM0001", "alice")
	h := NewHub(r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		client := NewClient(h, conn, "ROOM0001")
		h.QueueMessage(HubMessage{Type: MessageRegister, RoomCode: "ROOM0001", Client: client})
		client.Run()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, roster("alice"))

	cancel()
	<-h.done
	assert.Equal(t, 0, h.ClientCount("ROOM0001"))

	// 连接会收到关闭帧或直接断开
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) {
				assert.False(t, netErr.Timeout(), "connection was not closed")
			}
			break
		}
	}
}
