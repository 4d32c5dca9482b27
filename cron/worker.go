package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/models"
	"rentflow/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher delivers one queued notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.NotificationMessage) error
}

type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Location    *time.Location
	SweepCron   string
	Concurrency int
}

// Worker owns the asynq server that drains the notification and ledger
// queues, and the scheduler that enqueues the daily sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

func NewWorker(cfg WorkerConfig, job *DailyJob, dispatcher Dispatcher, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			tasks.QueueNotifications: 6,
			tasks.QueueLedger:        3,
			"default":                1,
		},
		Logger: logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("task failed",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Int("maxRetry", maxRetry),
				zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotificationSend, handleNotificationTask(dispatcher, logger))
	mux.HandleFunc(tasks.TypeDailySweep, handleDailySweepTask(job, logger))

	scheduler := asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   logger.Sugar(),
	})
	if cfg.SweepCron != "" {
		task, opts := tasks.NewDailySweepTask()
		entryID, err := scheduler.Register(cfg.SweepCron, task, opts...)
		if err != nil {
			return nil, fmt.Errorf("NewWorker: invalid sweep schedule %q: %w", cfg.SweepCron, err)
		}
		logger.Info("daily sweep scheduled",
			zap.String("cron", cfg.SweepCron),
			zap.String("timezone", cfg.Location.String()),
			zap.String("entryId", entryID))
	}

	return &Worker{server: srv, scheduler: scheduler, mux: mux, logger: logger}, nil
}

// Start runs the worker and scheduler in the background, retrying the worker
// start a few times while Redis comes up.
func (w *Worker) Start() error {
	const maxAttempts = 5

	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = w.server.Start(w.mux); err == nil {
			break
		}
		w.logger.Warn("failed to start worker",
			zap.Int("attempt", attempts),
			zap.Int("maxAttempts", maxAttempts),
			zap.Error(err))
		time.Sleep(time.Duration(attempts*2) * time.Second)
	}
	if err != nil {
		return fmt.Errorf("Worker: max retry attempts reached: %w", err)
	}

	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("Worker: failed to start scheduler: %w", err)
	}
	w.logger.Info("worker started")
	return nil
}

// Shutdown stops enqueuing periodic tasks and waits for active handlers.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("worker stopped")
}

func handleNotificationTask(dispatcher Dispatcher, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		msg, err := tasks.ParseNotificationTask(task)
		if err != nil {
			logger.Error("dropping notification task", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := dispatcher.Dispatch(ctx, msg); err != nil {
			return fmt.Errorf("notification %s: %w", msg.ID, err)
		}
		return nil
	}
}

func handleDailySweepTask(job *DailyJob, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := job.Run(ctx)
		if errors.Is(err, ErrAlreadyRunning) {
			logger.Info("daily sweep skipped, another replica holds the lock")
			return nil
		}
		return err
	}
}
