package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"study-room/internal/domain"
	"study-room/internal/metrics"
	"study-room/internal/repository"
)

// CreateRoomResult 是创建房间的返回值
type CreateRoomResult struct {
	RoomCode   string
	RoomListID uint
}

// RoomDetails 是房间详情
type RoomDetails struct {
	SessionName string
	RoomListID  uint
}

// RoomOption 配置 RoomService
type RoomOption func(*RoomService)

// WithClock 替换当前时间来源
func WithClock(now func() time.Time) RoomOption {
	return func(s *RoomService) { s.now = now }
}

// WithLocation 设置计算连续学习天数时使用的时区
func WithLocation(loc *time.Location) RoomOption {
	return func(s *RoomService) { s.loc = loc }
}

// WithCodeSource 替换生成房间码的随机源
func WithCodeSource(src io.Reader) RoomOption {
	return func(s *RoomService) { s.codeSource = src }
}

// RoomService 负责房间生命周期：创建、加入、离开以及销毁。
// 每个操作在单个事务中执行，并先锁定用户行，同一用户的并发请求因此串行化，
// 保证任何时刻每个用户至多一条活跃成员资格。广播在事务提交后进行。
type RoomService struct {
	tx          repository.Transactor
	users       repository.UserRepository
	rooms       repository.RoomRepository
	memberships repository.MembershipRepository
	lists       repository.ListRepository
	presence    *PresenceService
	metrics     *metrics.Metrics

	now        func() time.Time
	loc        *time.Location
	codeSource io.Reader // nil 表示 crypto/rand
}

// NewRoomService 创建 RoomService 实例。m 可以为 nil。
func NewRoomService(
	tx repository.Transactor,
	users repository.UserRepository,
	rooms repository.RoomRepository,
	memberships repository.MembershipRepository,
	lists repository.ListRepository,
	presence *PresenceService,
	m *metrics.Metrics,
	opts ...RoomOption,
) *RoomService {
	if tx == nil || users == nil || rooms == nil || memberships == nil || lists == nil || presence == nil {
		panic("Transactor, repositories and PresenceService must be non-nil for RoomService")
	}
	s := &RoomService{
		tx:          tx,
		users:       users,
		rooms:       rooms,
		memberships: memberships,
		lists:       lists,
		presence:    presence,
		metrics:     m,
		now:         time.Now,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRoom 关闭用户的所有活跃成员资格，然后创建新房间 (连同共享待办列表) 并让创建者加入。
// sessionName 为 nil 表示请求中没有该字段。
func (s *RoomService) CreateRoom(ctx context.Context, userID uint, sessionName *string) (result *CreateRoomResult, err error) {
	defer func() { s.metrics.RoomOperation("create", err) }()
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "operation": "CreateRoom"})

	var room *domain.Room
	var prior []uint
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()

		prior, err = s.closeActiveMemberships(ctx, user, now, 0)
		if err != nil {
			return err
		}

		list := &domain.List{Name: domain.RoomListName, IsShared: true}
		if err := s.lists.CreateList(ctx, list); err != nil {
			return fmt.Errorf("create room list: %w", err)
		}

		room = &domain.Room{
			CreatorID:   user.ID,
			SessionName: domain.ResolveSessionName(sessionName),
			StartTime:   now,
			Date:        now.In(s.loc),
			ToDoListID:  list.ID,
		}
		if err := s.insertRoom(ctx, room); err != nil {
			return err
		}

		if _, err := s.rejoin(ctx, user, room, now); err != nil {
			return err
		}
		user.UpdateStudyStreak(now.In(s.loc))
		return s.saveUser(ctx, user)
	})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to create room")
		return nil, err
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "room_code": room.RoomCode}).Info("Room created")
	s.notifyPriorRooms(ctx, prior)
	s.presence.NotifyParticipants(ctx, room)
	return &CreateRoomResult{RoomCode: room.RoomCode, RoomListID: room.ToDoListID}, nil
}

// JoinRoom 关闭用户的所有活跃成员资格，然后加入 roomCode 对应的房间。
// 房间不存在时，之前成员资格的关闭仍然生效，返回 ErrRoomNotFound。
func (s *RoomService) JoinRoom(ctx context.Context, userID uint, roomCode string) (err error) {
	defer func() { s.metrics.RoomOperation("join", err) }()
	if userID == 0 {
		return ErrUnauthenticated
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_code": roomCode, "operation": "JoinRoom"})

	var room *domain.Room
	var prior []uint
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now()

		// 锁定房间行，与最后一人离开时的销毁互斥
		room, err = s.rooms.FindByCodeForUpdate(ctx, roomCode)
		if err != nil {
			if !errors.Is(err, repository.ErrRoomNotFound) {
				return err
			}
			room = nil
		}

		// 如果用户本来就在目标房间，保留其在参与者集合中的位置
		var keep uint
		if room != nil {
			keep = room.ID
		}
		prior, err = s.closeActiveMemberships(ctx, user, now, keep)
		if err != nil {
			return err
		}
		if room == nil {
			// 提交前面的关闭，再向调用方报告房间不存在
			return s.saveUser(ctx, user)
		}

		if _, err := s.rejoin(ctx, user, room, now); err != nil {
			return err
		}
		user.UpdateStudyStreak(now.In(s.loc))
		return s.saveUser(ctx, user)
	})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to join room")
		return err
	}

	s.notifyPriorRooms(ctx, prior)
	if room == nil {
		logCtx.Warn("Room not found")
		return ErrRoomNotFound
	}
	logCtx.WithField("room_id", room.ID).Info("User joined room")
	s.presence.NotifyParticipants(ctx, room)
	return nil
}

// LeaveRoom 将用户移出房间并关闭其活跃成员资格；最后一个参与者离开时销毁房间。
// 返回用户名。没有活跃成员资格时参与者集合的移除仍然生效，返回 ErrNotInSession。
func (s *RoomService) LeaveRoom(ctx context.Context, userID uint, roomCode string) (username string, err error) {
	defer func() { s.metrics.RoomOperation("leave", err) }()
	if userID == 0 {
		return "", ErrUnauthenticated
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_code": roomCode, "operation": "LeaveRoom"})

	var room *domain.Room
	var notInSession, tornDown bool
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.lockUser(ctx, userID)
		if err != nil {
			return err
		}
		username = user.Username

		room, err = s.rooms.FindByCodeForUpdate(ctx, roomCode)
		if err != nil {
			return mapRepoError(err, ErrRoomNotFound)
		}
		if err := s.rooms.RemoveParticipant(ctx, room.ID, user.ID); err != nil {
			return err
		}

		active, err := s.memberships.FindActiveByUserAndRoom(ctx, user.ID, room.ID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			notInSession = true
			return nil
		}
		now := s.now()
		for i := range active {
			if err := s.closeMembership(ctx, user, &active[i], now, false); err != nil {
				return err
			}
		}
		if err := s.saveUser(ctx, user); err != nil {
			return err
		}

		remaining, err := s.rooms.CountParticipants(ctx, room.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		if err := s.rooms.Delete(ctx, room); err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				// 已被并发的离开操作销毁
				return nil
			}
			return fmt.Errorf("delete room: %w", err)
		}
		tornDown = true
		return nil
	})
	if err != nil {
		logCtx.WithError(err).Warn("Failed to leave room")
		return "", err
	}

	if tornDown {
		logCtx.WithFields(logrus.Fields{"room_id": room.ID, "list_id": room.ToDoListID}).Info("Last participant left, room deleted")
		s.presence.Publish(ctx, room.RoomCode, domain.NewParticipantsUpdate(nil))
		s.presence.Publish(ctx, room.RoomCode, domain.DeleteList{Type: domain.EventDeleteList, ListID: room.ToDoListID})
	} else {
		s.presence.NotifyParticipants(ctx, room)
	}
	if notInSession {
		logCtx.Warn("User has no active membership in room")
		return "", ErrNotInSession
	}
	logCtx.Info("User left room")
	return username, nil
}

// GetRoomDetails 返回房间名称和待办列表 ID
func (s *RoomService) GetRoomDetails(ctx context.Context, roomCode string) (*RoomDetails, error) {
	room, err := s.FindRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	return &RoomDetails{SessionName: room.SessionName, RoomListID: room.ToDoListID}, nil
}

// GetParticipants 返回房间参与者的用户名
func (s *RoomService) GetParticipants(ctx context.Context, roomCode string) ([]string, error) {
	room, err := s.FindRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	return s.presence.Roster(ctx, room.ID)
}

// FindRoomByCode 根据房间码查找房间；格式不合法的房间码直接视为不存在
func (s *RoomService) FindRoomByCode(ctx context.Context, roomCode string) (*domain.Room, error) {
	if !domain.IsValidRoomCode(roomCode) {
		return nil, ErrRoomNotFound
	}
	room, err := s.rooms.FindByCode(ctx, roomCode)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_code", roomCode).Error("FindRoomByCode: Repository error")
		return nil, err
	}
	return room, nil
}

// SweepEmptyRooms 删除没有参与者且创建时间早于 grace 之前的房间，返回删除的数量。
func (s *RoomService) SweepEmptyRooms(ctx context.Context, grace time.Duration, limit int) (int, error) {
	logCtx := logrus.WithField("operation", "SweepEmptyRooms")
	candidates, err := s.rooms.FindEmptyBefore(ctx, s.now().Add(-grace), limit)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, candidate := range candidates {
		var room *domain.Room
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			room, err = s.rooms.FindByCodeForUpdate(ctx, candidate.RoomCode)
			if err != nil {
				return err
			}
			// 加锁后重新确认，期间可能有人加入
			n, err := s.rooms.CountParticipants(ctx, room.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				room = nil
				return nil
			}
			return s.rooms.Delete(ctx, room)
		})
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				continue
			}
			logCtx.WithError(err).WithField("room_code", candidate.RoomCode).Error("Failed to delete empty room")
			continue
		}
		if room == nil {
			continue
		}
		deleted++
		s.presence.Publish(ctx, room.RoomCode, domain.DeleteList{Type: domain.EventDeleteList, ListID: room.ToDoListID})
	}
	s.metrics.RoomsSwept(deleted)
	if deleted > 0 {
		logCtx.WithField("deleted", deleted).Info("Swept empty rooms")
	}
	return deleted, nil
}

// --- 私有辅助函数 ---

// lockUser 锁定用户行；用户不存在视为未认证
func (s *RoomService) lockUser(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.users.FindByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, ErrUnauthenticated)
	}
	return user, nil
}

func (s *RoomService) saveUser(ctx context.Context, user *domain.User) error {
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save user statistics: %w", err)
	}
	return nil
}

// closeActiveMemberships 关闭用户在所有房间中的活跃成员资格并把用户移出对应房间，
// keep 房间的参与者集合保持不变。返回被移出参与者集合的房间 ID。
func (s *RoomService) closeActiveMemberships(ctx context.Context, user *domain.User, now time.Time, keep uint) ([]uint, error) {
	active, err := s.memberships.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	var left []uint
	for i := range active {
		m := &active[i]
		removeParticipant := m.RoomID != keep
		if err := s.closeMembership(ctx, user, m, now, removeParticipant); err != nil {
			return nil, err
		}
		if removeParticipant && !containsID(left, m.RoomID) {
			left = append(left, m.RoomID)
		}
	}
	return left, nil
}

// closeMembership 结算会话时长并删除成员资格
func (s *RoomService) closeMembership(ctx context.Context, user *domain.User, m *domain.Membership, now time.Time, removeParticipant bool) error {
	elapsed := m.Close(now)
	user.RecordStudyTime(elapsed)
	if err := s.memberships.Close(ctx, m); err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		return fmt.Errorf("close membership %d: %w", m.ID, err)
	}
	if removeParticipant {
		if err := s.rooms.RemoveParticipant(ctx, m.RoomID, user.ID); err != nil {
			return err
		}
	}
	logrus.WithFields(logrus.Fields{
		"user_id":       user.ID,
		"room_id":       m.RoomID,
		"membership_id": m.ID,
		"elapsed":       elapsed.String(),
	}).Debug("Membership closed")
	return nil
}

// rejoin 为 (用户, 房间) 开启一条新的成员资格：先关闭该组合下仍然活跃的记录，
// 序号为历史加入次数 + 1，并确保用户在参与者集合中。
func (s *RoomService) rejoin(ctx context.Context, user *domain.User, room *domain.Room, now time.Time) (*domain.Membership, error) {
	active, err := s.memberships.FindActiveByUserAndRoom(ctx, user.ID, room.ID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if err := s.closeMembership(ctx, user, &active[i], now, false); err != nil {
			return nil, err
		}
	}

	joins, err := s.memberships.CountJoins(ctx, user.ID, room.ID)
	if err != nil {
		return nil, err
	}
	if err := s.rooms.AddParticipant(ctx, room.ID, user.ID); err != nil {
		return nil, err
	}
	m := &domain.Membership{
		UserID:       user.ID,
		RoomID:       room.ID,
		JoinSequence: uint(joins) + 1,
		JoinedAt:     now,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return m, nil
}

// insertRoom 生成房间码并插入；冲突时重新生成，直到成功或 ctx 取消。
func (s *RoomService) insertRoom(ctx context.Context, room *domain.Room) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := domain.GenerateRoomCode(s.codeSource)
		if err != nil {
			return err
		}
		exists, err := s.rooms.IsRoomCodeExists(ctx, code)
		if err != nil {
			return fmt.Errorf("check room code: %w", err)
		}
		if exists {
			logrus.WithField("room_code", code).Warnf("Generated room code already exists, retrying (attempt %d)...", attempt)
			continue
		}
		room.RoomCode = code
		err = s.rooms.Create(ctx, room)
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logrus.WithField("room_code", code).Warnf("Room code taken concurrently, retrying (attempt %d)...", attempt)
			continue
		}
		return err
	}
}

// notifyPriorRooms 重新广播用户离开的旧房间名单
func (s *RoomService) notifyPriorRooms(ctx context.Context, roomIDs []uint) {
	for _, id := range roomIDs {
		room, err := s.rooms.FindByID(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("room_id", id).Debug("Prior room not found for roster refresh")
			continue
		}
		s.presence.NotifyParticipants(ctx, room)
	}
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
