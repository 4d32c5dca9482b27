package notification

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

// Deliverer pushes a message to the customer over one transport.
type Deliverer interface {
	Name() string
	// Accepts reports whether this deliverer can reach the recipient.
	Accepts(r models.Recipient) bool
	Deliver(ctx context.Context, msg models.NotificationMessage) error
}

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands messages to the asynq notification queue. It never
// waits for delivery.
type QueueNotifier struct {
	client  Enqueuer
	timeout time.Duration
	logger  *zap.Logger
}

func NewQueueNotifier(client Enqueuer, timeout time.Duration, logger *zap.Logger) (*QueueNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("notification initialization error: queue client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{client: client, timeout: timeout, logger: logger}, nil
}

func (n *QueueNotifier) Send(ctx context.Context, msg models.NotificationMessage) error {
	task, opts, err := tasks.NewNotificationTask(msg, n.timeout)
	if err != nil {
		return fmt.Errorf("QueueNotifier: failed to build task: %w", err)
	}
	info, err := n.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// already queued under the same message id
			return nil
		}
		return fmt.Errorf("QueueNotifier: failed to enqueue %s: %w", msg.Kind, err)
	}
	n.logger.Debug("notification queued",
		zap.String("taskId", info.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("ownerRef", msg.Recipient.OwnerRef))
	return nil
}

// Dispatcher runs inside the worker and fans a message out to every deliverer
// that can reach the recipient.
type Dispatcher struct {
	deliverers []Deliverer
	logger     *zap.Logger
}

func NewDispatcher(logger *zap.Logger, deliverers ...Deliverer) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{deliverers: deliverers, logger: logger}
}

// Dispatch fails only when no deliverer succeeded, so asynq retries the task.
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.NotificationMessage) error {
	var (
		errs      []error
		delivered int
	)
	for _, dl := range d.deliverers {
		if !dl.Accepts(msg.Recipient) {
			continue
		}
		if err := dl.Deliver(ctx, msg); err != nil {
			d.logger.Warn("delivery failed",
				zap.String("deliverer", dl.Name()),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", dl.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	if delivered == 0 {
		d.logger.Warn("no deliverer accepts recipient",
			zap.String("ownerRef", msg.Recipient.OwnerRef),
			zap.String("kind", string(msg.Kind)))
	}
	return nil
}
