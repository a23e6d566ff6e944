package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"study-room/internal/domain"
	"study-room/internal/infra/setup"
	"study-room/internal/testutil"
)

const e2eSecret = "e2e-secret"

var e2eSeq int64

type e2eEnv struct {
	app *App
	srv *httptest.Server
}

func newE2EEnv(t *testing.T) *e2eEnv {
	gin.SetMode(gin.TestMode)
	cfg := &Config{
		AppEnv:     "test",
		LogLevel:   "warn",
		ServerPort: "0",
		DB: setup.DBConfig{
			Driver:   setup.DriverSQLite,
			DSN:      fmt.Sprintf("file:e2e_%d?mode=memory&cache=shared", atomic.AddInt64(&e2eSeq, 1)),
			LogLevel: logger.Silent,
		},
		KeyPrefix:         "sr:",
		BroadcastBackend:  BroadcastMemory,
		JWTSecret:         e2eSecret,
		RateLimitMax:      100,
		RateLimitWindow:   time.Second,
		CORSAllowedOrigin: "*",
		SweepGrace:        time.Hour,
		SweepLimit:        10,
		Location:          time.UTC,
	}
	app, err := NewApp(cfg)
	require.NoError(t, err)
	require.NoError(t, app.startBackground())

	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Shutdown()
	})
	return &e2eEnv{app: app, srv: srv}
}

func (e *e2eEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(e2eSecret))
	require.NoError(t, err)
	return s
}

func (e *e2eEnv) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func (e *e2eEnv) dial(t *testing.T, roomCode string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/room/" + roomCode + "/"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

// awaitRoster 读取直到收到指定名单
func awaitRoster(t *testing.T, conn *websocket.Conn, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for roster %v", want)
		var msg domain.ParticipantsUpdate
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == domain.EventParticipantsUpdate && assert.ObjectsAreEqual(want, msg.Participants) {
			return
		}
	}
}

func TestE2E_CreateJoinBroadcastsRosterToBothSockets(t *testing.T) {
	env := newE2EEnv(t)
	alice := testutil.CreateUser(t, env.app.DB, "A")
	bob := testutil.CreateUser(t, env.app.DB, "B")

	status, body := env.call(t, http.MethodPost, "/api/create-room/", env.token(t, alice.ID), gin.H{"sessionName": "Test Room"})
	require.Equal(t, http.StatusOK, status, body)
	roomCode := body["roomCode"].(string)

	connA, _, err := env.dial(t, roomCode)
	require.NoError(t, err)
	awaitRoster(t, connA, "A")

	connB, _, err := env.dial(t, roomCode)
	require.NoError(t, err)
	awaitRoster(t, connB, "A")

	status, body = env.call(t, http.MethodPost, "/api/join-room/", env.token(t, bob.ID), gin.H{"roomCode": roomCode})
	require.Equal(t, http.StatusOK, status, body)

	awaitRoster(t, connA, "A", "B")
	awaitRoster(t, connB, "A", "B")

	// 聊天消息转发给整个组
	require.NoError(t, connB.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_message","message":"hello","sender":"B"}`)))
	require.NoError(t, connA.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := connA.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == domain.EventChatMessage {
			assert.Equal(t, "hello", msg["message"])
			break
		}
	}
}

func TestE2E_SoleLeaveTearsDownRoom(t *testing.T) {
	env := newE2EEnv(t)
	alice := testutil.CreateUser(t, env.app.DB, "A")
	token := env.token(t, alice.ID)

	status, body := env.call(t, http.MethodPost, "/api/create-room/", token, gin.H{"sessionName": "Solo"})
	require.Equal(t, http.StatusOK, status, body)
	roomCode := body["roomCode"].(string)
	listID := uint(body["roomList"].(float64))

	status, body = env.call(t, http.MethodPost, "/api/leave-room/", token, gin.H{"roomCode": roomCode})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "A", body["username"])

	status, body = env.call(t, http.MethodGet, "/api/get-room-details/?roomCode="+roomCode, token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Failed to retrieve room details")

	var lists int64
	require.NoError(t, env.app.DB.Model(&domain.List{}).Where("id = ?", listID).Count(&lists).Error)
	assert.Zero(t, lists)
}

func TestE2E_ConnectToUnknownRoomIsRefused(t *testing.T) {
	env := newE2EEnv(t)

	for _, code := range []string{"NOPE0000", "bad-code"} {
		conn, resp, err := env.dial(t, code)
		require.ErrorIs(t, err, websocket.ErrBadHandshake, code)
		assert.Nil(t, conn)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, code)
	}
}

func TestE2E_AuthAndOperationalEndpoints(t *testing.T) {
	env := newE2EEnv(t)

	status, body := env.call(t, http.MethodPost, "/api/create-room/", "", gin.H{"sessionName": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "User must be logged in", body["error"])

	status, body = env.call(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body["message"])

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "study_room_")
}
