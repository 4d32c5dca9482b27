package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/models"
	"rentflow/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	sweepLockKey = "rentflow:lock:daily-sweep"
	sweepLockTTL = 30 * time.Minute
)

// ErrAlreadyRunning is returned when another replica holds the sweep lock.
var ErrAlreadyRunning = errors.New("daily sweep already running")

// Ledger is the part of the ledger service the daily job drives.
type Ledger interface {
	RunDailySweep(ctx context.Context) (*models.SweepReport, error)
	RunScheduledReminders(ctx context.Context) (*models.ReminderPassReport, error)
}

// Locker hands out a process-wide lease; release must be safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker implements Locker with SET NX on the cache database.
type RedisLocker struct {
	Client *redis.Client
}

func (l RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := utils.AcquireLock(ctx, l.Client, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// DailyResult is what one daily pass produced.
type DailyResult struct {
	Sweep     *models.SweepReport        `json:"sweep"`
	Reminders *models.ReminderPassReport `json:"reminders,omitempty"`
}

// DailyJob runs the status sweep followed by the scheduled reminder pass.
// The periodic task and the admin endpoint share it so they never overlap.
type DailyJob struct {
	ledger Ledger
	locker Locker
	logger *zap.Logger
}

func NewDailyJob(ledger Ledger, locker Locker, logger *zap.Logger) *DailyJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyJob{ledger: ledger, locker: locker, logger: logger}
}

func (j *DailyJob) Run(ctx context.Context) (*DailyResult, error) {
	if j.locker != nil {
		release, err := j.locker.Acquire(ctx, sweepLockKey, sweepLockTTL)
		if errors.Is(err, utils.ErrLockHeld) {
			return nil, ErrAlreadyRunning
		}
		if err != nil {
			return nil, fmt.Errorf("DailyJob: failed to acquire lock: %w", err)
		}
		defer func() {
			// the lease outlives a cancelled request context
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				j.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	sweep, err := j.ledger.RunDailySweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("DailyJob: sweep failed: %w", err)
	}
	result := &DailyResult{Sweep: sweep}
	reminders, err := j.ledger.RunScheduledReminders(ctx)
	if err != nil {
		// the sweep already committed; the next run picks the reminders up
		return result, fmt.Errorf("DailyJob: reminder pass failed: %w", err)
	}
	result.Reminders = reminders
	j.logger.Info("daily job finished",
		zap.Int("markedOverdue", sweep.MarkedOverdue),
		zap.Int("remindersSent", reminders.Sent))
	return result, nil
}
