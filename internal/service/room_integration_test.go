package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"study-room/internal/domain"
	gormpersistence "study-room/internal/infra/persistence/gorm"
	"study-room/internal/service"
	"study-room/internal/testutil"
)

// recordingPublisher 记录所有发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]domain.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]domain.Event)}
}

func (p *recordingPublisher) Publish(_ context.Context, roomCode string, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[roomCode] = append(p.events[roomCode], event)
	return nil
}

func (p *recordingPublisher) last(roomCode string) domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	evs := p.events[roomCode]
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func (p *recordingPublisher) all(roomCode string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events[roomCode]...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type lifecycleEnv struct {
	db        *gorm.DB
	svc       *service.RoomService
	tasks     *service.TaskService
	publisher *recordingPublisher
	clock     *fakeClock
	users     *gormpersistence.GormUserRepository
	lists     *gormpersistence.GormListRepository
}

func newLifecycleEnv(t *testing.T) *lifecycleEnv {
	db := testutil.NewSQLiteDB(t)
	users := gormpersistence.NewGormUserRepository(db)
	rooms := gormpersistence.NewGormRoomRepository(db)
	memberships := gormpersistence.NewGormMembershipRepository(db)
	lists := gormpersistence.NewGormListRepository(db)
	publisher := newRecordingPublisher()
	clock := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	presence := service.NewPresenceService(rooms, publisher, nil)
	svc := service.NewRoomService(gormpersistence.NewGormTransactor(db), users, rooms, memberships, lists, presence, nil,
		service.WithClock(clock.Now))
	return &lifecycleEnv{
		db:        db,
		svc:       svc,
		tasks:     service.NewTaskService(lists, rooms, presence),
		publisher: publisher,
		clock:     clock,
		users:     users,
		lists:     lists,
	}
}

func (e *lifecycleEnv) activeCount(t *testing.T, userID uint) int64 {
	var n int64
	require.NoError(t, e.db.Model(&domain.Membership{}).Where("user_id = ? AND left_at IS NULL", userID).Count(&n).Error)
	return n
}

func (e *lifecycleEnv) user(t *testing.T, id uint) *domain.User {
	u, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestLifecycle_CreateJoinBroadcastsRoster(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "A")
	bob := testutil.CreateUser(t, env.db, "B")
	name := "Test Room"

	created, err := env.svc.CreateRoom(ctx, alice.ID, &name)
	require.NoError(t, err)
	assert.Len(t, created.RoomCode, domain.RoomCodeLength)
	assert.True(t, domain.IsValidRoomCode(created.RoomCode))
	assert.Equal(t, domain.NewParticipantsUpdate([]string{"A"}), env.publisher.last(created.RoomCode))

	require.NoError(t, env.svc.JoinRoom(ctx, bob.ID, created.RoomCode))
	assert.Equal(t, domain.NewParticipantsUpdate([]string{"A", "B"}), env.publisher.last(created.RoomCode))

	details, err := env.svc.GetRoomDetails(ctx, created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, "Test Room", details.SessionName)
	assert.Equal(t, created.RoomListID, details.RoomListID)

	list, err := env.lists.FindListByID(ctx, created.RoomListID)
	require.NoError(t, err)
	assert.True(t, list.IsShared)
	assert.Equal(t, domain.RoomListName, list.Name)

	names, err := env.svc.GetParticipants(ctx, created.RoomCode)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func TestLifecycle_SessionNameDefaults(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	empty := ""

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	details, err := env.svc.GetRoomDetails(ctx, created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSessionName, details.SessionName)

	created, err = env.svc.CreateRoom(ctx, alice.ID, &empty)
	require.NoError(t, err)
	details, err = env.svc.GetRoomDetails(ctx, created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptySessionName, details.SessionName)
}

func TestLifecycle_SingleActiveMembershipAcrossRooms(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	first, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	second, err := env.svc.CreateRoom(ctx, bob.ID, nil)
	require.NoError(t, err)

	env.clock.Advance(90 * time.Minute)
	require.NoError(t, env.svc.JoinRoom(ctx, alice.ID, second.RoomCode))
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))

	// alice 已移出第一个房间，名单被重新广播
	names, err := env.svc.GetParticipants(ctx, first.RoomCode)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Equal(t, domain.NewParticipantsUpdate(nil), env.publisher.last(first.RoomCode))

	names, err = env.svc.GetParticipants(ctx, second.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, names)

	u := env.user(t, alice.ID)
	assert.Equal(t, 1, u.HoursStudied)
	assert.Equal(t, 1, u.TotalSessions)

	// 创建房间同样会关闭之前的成员资格
	third, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))
	names, err = env.svc.GetParticipants(ctx, second.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names)
	names, err = env.svc.GetParticipants(ctx, third.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)
}

func TestLifecycle_ConcurrentJoinsKeepSingleActiveMembership(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner")
	alice := testutil.CreateUser(t, env.db, "alice")

	var codes []string
	for i := 0; i < 4; i++ {
		created, err := env.svc.CreateRoom(ctx, owner.ID, nil)
		require.NoError(t, err)
		codes = append(codes, created.RoomCode)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(codes)*3)
	for round := 0; round < 3; round++ {
		for _, code := range codes {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				errs <- env.svc.JoinRoom(ctx, alice.ID, code)
			}(code)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), env.activeCount(t, alice.ID))
	var participations int64
	require.NoError(t, env.db.Model(&domain.RoomParticipant{}).Where("user_id = ?", alice.ID).Count(&participations).Error)
	assert.Equal(t, int64(1), participations)
}

func TestLifecycle_RejoinSequenceStrictlyIncreases(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, env.svc.JoinRoom(ctx, bob.ID, created.RoomCode))
		_, err := env.svc.LeaveRoom(ctx, bob.ID, created.RoomCode)
		require.NoError(t, err)
	}
	require.NoError(t, env.svc.JoinRoom(ctx, bob.ID, created.RoomCode))

	var records []domain.MembershipRecord
	require.NoError(t, env.db.Where("user_id = ?", bob.ID).Order("id").Find(&records).Error)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, uint(i+1), r.JoinSequence)
	}

	var live []domain.Membership
	require.NoError(t, env.db.Where("user_id = ?", bob.ID).Find(&live).Error)
	require.Len(t, live, 1, "closed memberships are deleted")
	assert.Equal(t, uint(4), live[0].JoinSequence)
}

func TestLifecycle_StreakRules(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.user(t, alice.ID).Streaks)

	// 同一天再次加入：不变
	env.clock.Advance(time.Hour)
	require.NoError(t, env.svc.JoinRoom(ctx, alice.ID, created.RoomCode))
	assert.Equal(t, 1, env.user(t, alice.ID).Streaks)

	// 第二天：+1
	env.clock.Advance(24 * time.Hour)
	require.NoError(t, env.svc.JoinRoom(ctx, alice.ID, created.RoomCode))
	assert.Equal(t, 2, env.user(t, alice.ID).Streaks)

	// 离开不改变连续天数
	env.clock.Advance(24 * time.Hour)
	_, err = env.svc.LeaveRoom(ctx, alice.ID, created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 2, env.user(t, alice.ID).Streaks)

	// 中断两天以上：重置为 1
	env.clock.Advance(72 * time.Hour)
	_, err = env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, env.user(t, alice.ID).Streaks)
}

func TestLifecycle_LastLeaveTearsDownRoom(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	require.NoError(t, env.svc.JoinRoom(ctx, bob.ID, created.RoomCode))
	_, err = env.tasks.CreateTask(ctx, created.RoomListID, "read chapter 3", "")
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	username, err := env.svc.LeaveRoom(ctx, bob.ID, created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, "bob", username)
	_, err = env.svc.GetRoomDetails(ctx, created.RoomCode)
	require.NoError(t, err, "room survives while participants remain")
	assert.Equal(t, 2, env.user(t, bob.ID).HoursStudied)

	_, err = env.svc.LeaveRoom(ctx, alice.ID, created.RoomCode)
	require.NoError(t, err)

	_, err = env.svc.GetRoomDetails(ctx, created.RoomCode)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
	_, err = env.lists.FindListByID(ctx, created.RoomListID)
	assert.Error(t, err)
	var tasks int64
	require.NoError(t, env.db.Model(&domain.Task{}).Where("list_id = ?", created.RoomListID).Count(&tasks).Error)
	assert.Zero(t, tasks)

	assert.Equal(t, domain.DeleteList{Type: domain.EventDeleteList, ListID: created.RoomListID}, env.publisher.last(created.RoomCode))

	// 房间已销毁后再次离开
	_, err = env.svc.LeaveRoom(ctx, alice.ID, created.RoomCode)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestLifecycle_LastLeaveTearsDownRoomWithoutList(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	require.NoError(t, env.lists.DeleteList(ctx, created.RoomListID))

	_, err = env.svc.LeaveRoom(ctx, alice.ID, created.RoomCode)
	require.NoError(t, err)

	var rooms int64
	require.NoError(t, env.db.Model(&domain.Room{}).Where("room_code = ?", created.RoomCode).Count(&rooms).Error)
	assert.Zero(t, rooms)
	_, err = env.svc.GetRoomDetails(ctx, created.RoomCode)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestLifecycle_SweepRemovesRoomWithoutList(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")

	abandoned, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	_, err = env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	require.NoError(t, env.lists.DeleteList(ctx, abandoned.RoomListID))

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, env.db.Model(&domain.Room{}).Where("room_code = ?", abandoned.RoomCode).
		Update("created_at", old).Error)

	env.clock.Advance(time.Since(env.clock.Now()))
	n, err := env.svc.SweepEmptyRooms(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = env.svc.GetRoomDetails(ctx, abandoned.RoomCode)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestLifecycle_LeaveWithoutMembership(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)

	_, err = env.svc.LeaveRoom(ctx, bob.ID, created.RoomCode)
	assert.ErrorIs(t, err, service.ErrNotInSession)
	_, err = env.svc.GetRoomDetails(ctx, created.RoomCode)
	assert.NoError(t, err)
}

func TestLifecycle_SweepRemovesAbandonedRooms(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")

	abandoned, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)
	current, err := env.svc.CreateRoom(ctx, alice.ID, nil) // alice 离开了第一个房间
	require.NoError(t, err)

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, env.db.Model(&domain.Room{}).Where("room_code IN ?", []string{abandoned.RoomCode, current.RoomCode}).
		Update("created_at", old).Error)

	// created_at 来自真实时钟，把假时钟拨到现在
	env.clock.Advance(time.Since(env.clock.Now()))
	n, err := env.svc.SweepEmptyRooms(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = env.svc.GetRoomDetails(ctx, abandoned.RoomCode)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
	_, err = env.svc.GetRoomDetails(ctx, current.RoomCode)
	assert.NoError(t, err)
}

func TestLifecycle_TaskEventsReachRoom(t *testing.T) {
	env := newLifecycleEnv(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "alice")

	created, err := env.svc.CreateRoom(ctx, alice.ID, nil)
	require.NoError(t, err)

	task, err := env.tasks.CreateTask(ctx, created.RoomListID, "flashcards", "ch. 4")
	require.NoError(t, err)
	toggled, err := env.tasks.ToggleTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)
	require.NoError(t, env.tasks.DeleteTask(ctx, task.ID))

	events := env.publisher.all(created.RoomCode)
	require.GreaterOrEqual(t, len(events), 3)
	tail := events[len(events)-3:]
	assert.Equal(t, domain.NewAddTask(*task), tail[0])
	assert.Equal(t, domain.ToggleTask{Type: domain.EventToggleTask, TaskID: task.ID, IsCompleted: true}, tail[1])
	assert.Equal(t, domain.RemoveTask{Type: domain.EventRemoveTask, TaskID: task.ID}, tail[2])

	// 不属于房间的列表不广播
	private := &domain.List{Name: "mine"}
	require.NoError(t, env.lists.CreateList(ctx, private))
	before := len(env.publisher.all(created.RoomCode))
	_, err = env.tasks.CreateTask(ctx, private.ID, "solo", "")
	require.NoError(t, err)
	assert.Len(t, env.publisher.all(created.RoomCode), before)

	_, err = env.tasks.CreateTask(ctx, 9999, "x", "")
	assert.ErrorIs(t, err, service.ErrListNotFound)
	_, err = env.tasks.CreateTask(ctx, private.ID, "  ", "")
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
	_, err = env.tasks.ToggleTask(ctx, 9999)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.ErrorIs(t, env.tasks.DeleteTask(ctx, 9999), service.ErrTaskNotFound)
}
