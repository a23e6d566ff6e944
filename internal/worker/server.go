package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"study-room/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 和定时调度器的启动和关闭逻辑
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *logrus.Entry
}

// SweepSchedule 描述定期清理任务
type SweepSchedule struct {
	CronSpec string // asynq cron 表达式，例如 "@every 10m"；为空时不调度
	Task     *asynq.Task
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, sweeper RoomSweeper, schedule SweepSchedule, logger *logrus.Logger) (*WorkerServer, error) {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{"default": 1},
			Logger:      logEntry,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeRoomSweep, NewRoomSweepHandler(sweeper))

	ws := &WorkerServer{server: server, mux: mux, log: logEntry}
	if schedule.CronSpec != "" && schedule.Task != nil {
		ws.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logEntry})
		entryID, err := ws.scheduler.Register(schedule.CronSpec, schedule.Task)
		if err != nil {
			return nil, fmt.Errorf("register %s schedule %q: %w", schedule.Task.Type(), schedule.CronSpec, err)
		}
		logEntry.WithFields(logrus.Fields{"entry_id": entryID, "cron": schedule.CronSpec}).Info("Room sweep scheduled")
	}
	return ws, nil
}

// Start 启动 Worker Server 和调度器 (非阻塞)
func (ws *WorkerServer) Start() error {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(ws.mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	if ws.scheduler != nil {
		if err := ws.scheduler.Start(); err != nil {
			ws.server.Shutdown()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

// Shutdown 优雅地关闭调度器和 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	if ws.scheduler != nil {
		ws.scheduler.Shutdown()
	}
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
