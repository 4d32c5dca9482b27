package notification

import (
	"context"
	"fmt"

	"rentflow/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// LogDeliverer writes every message to the structured log. Email and SMS
// transports live outside this service; the log is their hand-off record.
type LogDeliverer struct {
	logger *zap.Logger
}

func NewLogDeliverer(logger *zap.Logger) *LogDeliverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDeliverer{logger: logger}
}

func (d *LogDeliverer) Name() string { return "log" }

func (d *LogDeliverer) Accepts(r models.Recipient) bool { return r.Email != "" || r.Phone != "" }

func (d *LogDeliverer) Deliver(_ context.Context, msg models.NotificationMessage) error {
	d.logger.Info("notification",
		zap.String("id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("email", msg.Recipient.Email),
		zap.String("phone", msg.Recipient.Phone),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}

// PushSender is satisfied by *messaging.Client.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMDeliverer sends a push to customers that registered a device token.
type FCMDeliverer struct {
	client PushSender
}

func NewFCMDeliverer(client PushSender) *FCMDeliverer {
	return &FCMDeliverer{client: client}
}

func (d *FCMDeliverer) Name() string { return "fcm" }

func (d *FCMDeliverer) Accepts(r models.Recipient) bool {
	return d.client != nil && r.DeviceToken != ""
}

func (d *FCMDeliverer) Deliver(ctx context.Context, msg models.NotificationMessage) error {
	if _, err := d.client.Send(ctx, pushMessage(msg)); err != nil {
		return fmt.Errorf("FCMDeliverer: failed to send FCM message: %w", err)
	}
	return nil
}

func pushMessage(msg models.NotificationMessage) *messaging.Message {
	data := map[string]string{
		"kind":      string(msg.Kind),
		"messageId": msg.ID,
	}
	for _, key := range []string{"rentalId", "obligationId", "invoiceNumber", "artifactRef", "monthKey"} {
		if v, ok := msg.Data[key]; ok {
			data[key] = fmt.Sprint(v)
		}
	}

	priority := "normal"
	if msg.Kind == models.TemplateReminderOverdue {
		priority = "high"
	}
	return &messaging.Message{
		Token: msg.Recipient.DeviceToken,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				ChannelID: "payments",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}
