package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
	"study-room/internal/repository"
)

// TaskService 处理待办列表上的任务操作；列表属于某个房间时把变更广播给房间。
type TaskService struct {
	lists    repository.ListRepository
	rooms    repository.RoomRepository
	presence *PresenceService
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(lists repository.ListRepository, rooms repository.RoomRepository, presence *PresenceService) *TaskService {
	if lists == nil || rooms == nil || presence == nil {
		panic("ListRepository, RoomRepository and PresenceService must be non-nil for TaskService")
	}
	return &TaskService{lists: lists, rooms: rooms, presence: presence}
}

// GetList 返回列表及其任务
func (s *TaskService) GetList(ctx context.Context, listID uint) (*domain.List, error) {
	list, err := s.lists.FindListByID(ctx, listID)
	if err != nil {
		return nil, mapRepoError(err, ErrListNotFound)
	}
	return list, nil
}

// CreateTask 在列表中创建任务，广播 add_task
func (s *TaskService) CreateTask(ctx context.Context, listID uint, title, content string) (*domain.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidRequest
	}
	if _, err := s.lists.FindListByID(ctx, listID); err != nil {
		return nil, mapRepoError(err, ErrListNotFound)
	}
	task := &domain.Task{ListID: listID, Title: title, Content: content}
	if err := s.lists.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"list_id": listID, "task_id": task.ID}).Info("Task created")
	s.broadcast(ctx, listID, domain.NewAddTask(*task))
	return task, nil
}

// ToggleTask 切换任务完成状态，广播 toggle_task
func (s *TaskService) ToggleTask(ctx context.Context, taskID uint) (*domain.Task, error) {
	task, err := s.lists.FindTaskByID(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, ErrTaskNotFound)
	}
	task.IsCompleted = !task.IsCompleted
	if err := s.lists.SaveTask(ctx, task); err != nil {
		return nil, err
	}
	s.broadcast(ctx, task.ListID, domain.ToggleTask{Type: domain.EventToggleTask, TaskID: task.ID, IsCompleted: task.IsCompleted})
	return task, nil
}

// DeleteTask 删除任务，广播 remove_task
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint) error {
	task, err := s.lists.FindTaskByID(ctx, taskID)
	if err != nil {
		return mapRepoError(err, ErrTaskNotFound)
	}
	if err := s.lists.DeleteTask(ctx, taskID); err != nil {
		return mapRepoError(err, ErrTaskNotFound)
	}
	s.broadcast(ctx, task.ListID, domain.RemoveTask{Type: domain.EventRemoveTask, TaskID: taskID})
	return nil
}

// broadcast 把事件发给拥有该列表的房间 (如果有)
func (s *TaskService) broadcast(ctx context.Context, listID uint, event domain.Event) {
	room, err := s.rooms.FindByListID(ctx, listID)
	if err != nil {
		if !errors.Is(err, repository.ErrRoomNotFound) {
			logrus.WithError(err).WithField("list_id", listID).Warn("Failed to resolve room for list")
		}
		return
	}
	s.presence.Publish(ctx, room.RoomCode, event)
}
