package repository

import "context"

// Transactor 提供事务边界。
// fn 收到的 ctx 携带事务，所有仓库方法用这个 ctx 调用时都在同一事务中执行；
// fn 返回错误时回滚，否则提交。
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
