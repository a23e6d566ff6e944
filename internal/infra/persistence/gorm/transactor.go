package gormpersistence

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type txKey struct{}

// GormTransactor 是 repository.Transactor 的 GORM 实现。
// 事务句柄放在 context 中传递，仓库方法通过 conn 取出。
type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor 创建 GormTransactor 实例
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	if db == nil {
		panic("database connection cannot be nil for GormTransactor")
	}
	return &GormTransactor{db: db}
}

// WithinTransaction 在单个数据库事务中执行 fn。
// 如果 ctx 已经携带事务，直接复用 (不嵌套)。
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn 返回 ctx 中的事务句柄，没有则返回普通连接
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// isDuplicateEntryError 检查唯一约束错误。
// MySQL 使用驱动错误码，其他数据库退回到错误字符串匹配。
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "Duplicate entry") || // MySQL
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}
