package service

import (
	"errors"

	"study-room/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("User must be logged in")
	ErrRoomNotFound    = errors.New("Room not found")
	ErrNotInSession    = errors.New("User is not in the session")
	ErrListNotFound    = errors.New("List doesn't exist")
	ErrTaskNotFound    = errors.New("Task not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// mapRepoError 将仓库层的"未找到"映射到 notFound，其他错误原样包装返回，
// 由 handler 转成 400 并带上错误细节。
func mapRepoError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
