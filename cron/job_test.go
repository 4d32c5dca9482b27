package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentflow/models"
	"rentflow/services/tasks"
	"rentflow/utils"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLedger struct {
	sweepErr    error
	reminderErr error
	calls       []string
}

func (f *fakeLedger) RunDailySweep(context.Context) (*models.SweepReport, error) {
	f.calls = append(f.calls, "sweep")
	if f.sweepErr != nil {
		return nil, f.sweepErr
	}
	return &models.SweepReport{Scanned: 3, MarkedOverdue: 1}, nil
}

func (f *fakeLedger) RunScheduledReminders(context.Context) (*models.ReminderPassReport, error) {
	f.calls = append(f.calls, "reminders")
	if f.reminderErr != nil {
		return nil, f.reminderErr
	}
	return &models.ReminderPassReport{Candidates: 1, Sent: 1}, nil
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	if l.held {
		return nil, utils.ErrLockHeld
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, nil
}

func TestDailyJob_RunsSweepThenReminders(t *testing.T) {
	ledger := &fakeLedger{}
	locker := &fakeLocker{}

	res, err := NewDailyJob(ledger, locker, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep", "reminders"}, ledger.calls)
	assert.Equal(t, 1, res.Sweep.MarkedOverdue)
	assert.Equal(t, 1, res.Reminders.Sent)
	assert.Equal(t, 1, locker.released)
	assert.False(t, locker.held)
}

func TestDailyJob_SkipsWhenLockHeld(t *testing.T) {
	ledger := &fakeLedger{}
	locker := &fakeLocker{held: true}

	_, err := NewDailyJob(ledger, locker, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Empty(t, ledger.calls)
}

func TestDailyJob_SweepFailureSkipsReminders(t *testing.T) {
	ledger := &fakeLedger{sweepErr: errors.New("mongo unavailable")}
	locker := &fakeLocker{}

	_, err := NewDailyJob(ledger, locker, nil).Run(context.Background())
	assert.ErrorContains(t, err, "mongo unavailable")
	assert.Equal(t, []string{"sweep"}, ledger.calls)
	assert.Equal(t, 1, locker.released)
}

func TestDailyJob_ReminderFailureKeepsSweepReport(t *testing.T) {
	ledger := &fakeLedger{reminderErr: errors.New("boom")}

	res, err := NewDailyJob(ledger, nil, nil).Run(context.Background())
	assert.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Sweep.Scanned)
	assert.Nil(t, res.Reminders)
}

func TestDailySweepTask_LockHeldIsNotRetried(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	job := NewDailyJob(&fakeLedger{}, &fakeLocker{held: true}, nil)
	task, _ := tasks.NewDailySweepTask()

	assert.NoError(t, handleDailySweepTask(job, zap.New(core))(context.Background(), task))
	assert.Equal(t, 1, logs.FilterMessageSnippet("another replica holds the lock").Len())
}

type fakeDispatcher struct {
	got []models.NotificationMessage
	err error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg models.NotificationMessage) error {
	d.got = append(d.got, msg)
	return d.err
}

func TestNotificationTask(t *testing.T) {
	d := &fakeDispatcher{}
	handler := handleNotificationTask(d, zap.NewNop())

	task, _, err := tasks.NewNotificationTask(models.NotificationMessage{ID: "m1", Kind: models.TemplateInvoice}, time.Second)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Len(t, d.got, 1)
	assert.Equal(t, "m1", d.got[0].ID)

	err = handler(context.Background(), asynq.NewTask(tasks.TypeNotificationSend, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	d.err = errors.New("all deliverers failed")
	assert.ErrorContains(t, handler(context.Background(), task), "all deliverers failed")
}
