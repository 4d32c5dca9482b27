package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"rentflow/models"

	"github.com/hibiken/asynq"
)

const (
	TypeNotificationSend = "notification:send"
	TypeDailySweep       = "ledger:daily-sweep"

	QueueNotifications = "notifications"
	QueueLedger        = "ledger"
)

// NewNotificationTask wraps a message for the notification worker. Delivery is
// retried by asynq; the timeout bounds a single attempt.
func NewNotificationTask(msg models.NotificationMessage, timeout time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeNotificationSend, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(timeout),
	}
	if msg.ID != "" {
		opts = append(opts, asynq.TaskID(msg.ID))
	}
	return task, opts, nil
}

func ParseNotificationTask(task *asynq.Task) (models.NotificationMessage, error) {
	var msg models.NotificationMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return msg, fmt.Errorf("invalid notification payload: %w", err)
	}
	return msg, nil
}

// NewDailySweepTask is registered with the scheduler. Only one instance can be
// queued at a time; a missed run is picked up by the next one.
func NewDailySweepTask() (*asynq.Task, []asynq.Option) {
	task := asynq.NewTask(TypeDailySweep, nil)
	opts := []asynq.Option{
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
	}
	return task, opts
}
