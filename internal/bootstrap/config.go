package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"study-room/internal/infra/setup"
)

// 广播后端
const (
	BroadcastMemory = "memory"
	BroadcastRedis  = "redis"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	AppEnv     string // development / production
	LogLevel   string
	LogFile    string // 非空时同时写入滚动日志文件
	ServerPort string

	DB setup.DBConfig

	RedisAddr     string // 为空时不启用限流、后台任务和 Redis 广播
	RedisPassword string
	RedisDB       int
	KeyPrefix     string // Redis Key 前缀

	BroadcastBackend  string
	JWTSecret         string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	CORSAllowedOrigin string

	SweepInterval string        // asynq cron 表达式
	SweepGrace    time.Duration // 空房间保留多久后清理
	SweepLimit    int

	Location *time.Location // 连续学习天数按此时区划分日期
}

// LoadConfig 从环境变量加载配置 (优先加载 .env 文件，如果存在)
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		AppEnv:     withDefault(os.Getenv("APP_ENV"), "development"),
		LogLevel:   withDefault(os.Getenv("LOG_LEVEL"), "info"),
		LogFile:    os.Getenv("LOG_FILE"),
		ServerPort: withDefault(os.Getenv("SERVER_PORT"), "8080"),
		DB: setup.DBConfig{
			Driver:   withDefault(os.Getenv("DB_DRIVER"), setup.DriverMySQL),
			DSN:      os.Getenv("DB_DSN"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     os.Getenv("DB_NAME"),
		},
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         withDefault(os.Getenv("REDIS_KEY_PREFIX"), "sr:"),
		BroadcastBackend:  withDefault(os.Getenv("BROADCAST_BACKEND"), BroadcastMemory),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CORSAllowedOrigin: withDefault(os.Getenv("CORS_ALLOWED_ORIGIN"), "http://localhost:3000"),
		SweepInterval:     withDefault(os.Getenv("ROOM_SWEEP_INTERVAL"), "@every 10m"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = intEnv("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepGrace, err = durationEnv("ROOM_SWEEP_GRACE", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepLimit, err = intEnv("ROOM_SWEEP_LIMIT", 100); err != nil {
		return nil, err
	}
	tz := withDefault(os.Getenv("TIMEZONE"), "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	// --- 必要检查 ---
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.DB.Driver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	switch cfg.BroadcastBackend {
	case BroadcastMemory:
	case BroadcastRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("BROADCAST_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unsupported BROADCAST_BACKEND %q", cfg.BroadcastBackend)
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
