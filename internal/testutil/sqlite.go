// Package testutil 提供测试用的数据库和数据构造工具。
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"study-room/internal/domain"
	"study-room/internal/infra/setup"
)

var dbSeq int64

// NewSQLiteDB 打开一个已迁移的内存 SQLite 数据库，测试结束时关闭。
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))

	db, err := setup.InitDB(setup.DBConfig{Driver: setup.DriverSQLite, DSN: dsn, LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser 插入一个用户
func CreateUser(t testing.TB, db *gorm.DB, username string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, db.Create(user).Error)
	return user
}
