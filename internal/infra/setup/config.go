package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConfig 数据库连接参数
type DBConfig struct {
	Driver   string // mysql / postgres / sqlite
	DSN      string // 非空时直接使用
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	LogLevel logger.LogLevel // GORM SQL 日志级别，0 表示 Warn
}

// DSNString 根据驱动构建连接字符串
func (c DBConfig) DSNString() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case DriverMySQL, "":
		if c.User == "" {
			return "", fmt.Errorf("DB_USER must be set for mysql")
		}
		host, port := withDefault(c.Host, "127.0.0.1"), withDefault(c.Port, "3306")
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, host, port, withDefault(c.Name, "study_room")), nil
	case DriverPostgres:
		if c.User == "" {
			return "", fmt.Errorf("DB_USER must be set for postgres")
		}
		host, port := withDefault(c.Host, "127.0.0.1"), withDefault(c.Port, "5432")
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			host, c.User, c.Password, withDefault(c.Name, "study_room"), port), nil
	case DriverSQLite:
		return withDefault(c.Name, "study_room.db"), nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER '%s'", c.Driver)
}

// InitDB 初始化数据库连接
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	dsn, err := cfg.DSNString()
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		dialector = mysql.Open(dsn)
	}

	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", withDefault(cfg.Driver, DriverMySQL), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite 只允许一个写者；单连接同时让内存库在连接池中保持存活
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	logrus.WithField("driver", withDefault(cfg.Driver, DriverMySQL)).Info("Database connected")
	return db, nil
}

// InitRedis 初始化 Redis 连接并 Ping 检查
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
