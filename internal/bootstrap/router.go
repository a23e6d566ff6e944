package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	httpHandler "study-room/internal/handler/http"
	wsHandler "study-room/internal/handler/websocket"
	"study-room/internal/metrics"
	"study-room/internal/middleware"
)

// RouterDeps 是路由需要的处理器和中间件依赖
type RouterDeps struct {
	Log         *logrus.Logger
	JWTSecret   string
	CORSOrigin  string
	Limiter     middleware.Limiter // 为 nil 时不限流
	LimitMax    int
	LimitWindow time.Duration
	Rooms       *httpHandler.RoomHandler
	Tasks       *httpHandler.TaskHandler
	WebSocket   *wsHandler.WebSocketHandler
	Metrics     *metrics.Metrics // 为 nil 时不暴露 /metrics
}

// SetupRouter 注册所有路由
func SetupRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(d.Log))
	router.Use(cors(d.CORSOrigin))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	if d.Metrics != nil {
		router.GET("/metrics", d.Metrics.Handler())
	}

	api := router.Group("/api")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter, d.LimitMax, d.LimitWindow))
	}
	api.Use(middleware.Auth(d.JWTSecret))
	{
		api.POST("/create-room/", d.Rooms.CreateRoom)
		api.POST("/join-room/", d.Rooms.JoinRoom)
		api.GET("/get-room-details/", d.Rooms.GetRoomDetails)
		api.POST("/leave-room/", d.Rooms.LeaveRoom)
		api.GET("/get-participants/", d.Rooms.GetParticipants)

		api.GET("/todolists/:id/", d.Tasks.GetList)
		api.POST("/new_task/", d.Tasks.CreateTask)
		api.PATCH("/update_task/:id/", d.Tasks.ToggleTask)
		api.DELETE("/delete_task/:id/", d.Tasks.DeleteTask)
	}

	// 实时连接不经过认证，房间码本身即访问凭据
	ws := router.Group("/ws")
	{
		ws.GET("/room/:roomCode/", d.WebSocket.HandleConnection)
		ws.GET("/todolist/:roomCode/", d.WebSocket.HandleConnection)
	}
	return router
}

func cors(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
