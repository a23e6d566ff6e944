package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "study-room/internal/handler/http"
	wsHandler "study-room/internal/handler/websocket"
	"study-room/internal/hub"
	"study-room/internal/metrics"
	gormpersistence "study-room/internal/infra/persistence/gorm"
	"study-room/internal/infra/setup"
	redisstate "study-room/internal/infra/state/redis"
	"study-room/internal/repository"
	"study-room/internal/service"
	"study-room/internal/tasks"
	"study-room/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client // 未配置 REDIS_ADDR 时为 nil
	Metrics     *metrics.Metrics
	Hub         *hub.Hub
	RoomService *service.RoomService
	Worker      *worker.WorkerServer // 未配置 Redis 时为 nil
	Router      *gin.Engine
	HttpServer  *http.Server

	eventBus     *redisstate.EventBus
	subscription *redisstate.Subscription
	logCloser    io.Closer
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp(cfg *Config) (*App, error) {
	// 1. 初始化 Logger
	log, logCloser := NewLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 2. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	log.WithField("driver", cfg.DB.Driver).Info("Database initialized")

	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		log.Info("Redis client initialized")
	} else {
		log.Warn("REDIS_ADDR not set: rate limiting and room sweep are disabled")
	}
	m := metrics.New()

	// 3. 初始化 Repositories
	txManager := gormpersistence.NewGormTransactor(db)
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	membershipRepo := gormpersistence.NewGormMembershipRepository(db)
	listRepo := gormpersistence.NewGormListRepository(db)

	// 4. 初始化 Hub 和广播方式
	hubInstance := hub.NewHub(roomRepo, m)
	var publisher repository.EventPublisher = hubInstance
	var eventBus *redisstate.EventBus
	if cfg.BroadcastBackend == BroadcastRedis {
		eventBus = redisstate.NewEventBus(redisClient, cfg.KeyPrefix)
		hubInstance.SetPublisher(eventBus)
		publisher = eventBus
		log.Info("Room events are broadcast through Redis")
	}

	// 5. 初始化 Services
	presence := service.NewPresenceService(roomRepo, publisher, m)
	roomService := service.NewRoomService(txManager, userRepo, roomRepo, membershipRepo, listRepo, presence, m,
		service.WithLocation(cfg.Location))
	taskService := service.NewTaskService(listRepo, roomRepo, presence)
	log.Info("Services initialized")

	// 6. 初始化 Worker Server
	var workerServer *worker.WorkerServer
	if redisClient != nil {
		sweepTask, err := tasks.NewRoomSweepTask(cfg.SweepGrace, cfg.SweepLimit)
		if err != nil {
			return nil, err
		}
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		workerServer, err = worker.NewWorkerServer(redisOpt, roomService,
			worker.SweepSchedule{CronSpec: cfg.SweepInterval, Task: sweepTask}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init worker server: %w", err)
		}
		log.Info("Worker server initialized")
	}

	// 7. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := RouterDeps{
		Log:         log,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigin:  cfg.CORSAllowedOrigin,
		LimitMax:    cfg.RateLimitMax,
		LimitWindow: cfg.RateLimitWindow,
		Rooms:       httpHandler.NewRoomHandler(roomService),
		Tasks:       httpHandler.NewTaskHandler(taskService),
		WebSocket:   wsHandler.NewWebSocketHandler(hubInstance, roomService, cfg.CORSAllowedOrigin),
		Metrics:     m,
	}
	if redisClient != nil {
		deps.Limiter = redisstate.NewRateLimiter(redisClient, cfg.KeyPrefix)
	}
	router := SetupRouter(deps)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Info("Application assembled successfully")
	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		Metrics:     m,
		Hub:         hubInstance,
		RoomService: roomService,
		Worker:      workerServer,
		Router:      router,
		HttpServer:  httpServer,
		eventBus:    eventBus,
		logCloser:   logCloser,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() error {
	if err := a.startBackground(); err != nil {
		return err
	}
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

// startBackground 启动 Hub、Redis 订阅和后台任务
func (a *App) startBackground() error {
	go a.Hub.Run(a.ctx)
	a.Log.Info("Hub routine started")

	if a.eventBus != nil {
		sub, err := a.eventBus.Subscribe(a.ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to room events: %w", err)
		}
		a.subscription = sub
		go sub.Deliver(a.ctx, a.Hub.Broadcast)
		a.Log.Info("Room event subscription started")
	}

	if a.Worker != nil {
		if err := a.Worker.Start(); err != nil {
			return err
		}
		a.Log.Info("Asynq worker server started")
	}
	return nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭 Worker Server
	if a.Worker != nil {
		a.Worker.Shutdown()
	}

	// 3. 停止订阅并关闭所有实时连接
	if a.subscription != nil {
		if err := a.subscription.Close(); err != nil {
			a.Log.Errorf("Error closing room event subscription: %v", err)
		}
	}
	a.cancel()

	// 4. 关闭 Redis 和数据库连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
