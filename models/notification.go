package models

import "time"

// TemplateKind selects the message a notification channel renders.
type TemplateKind string

const (
	TemplateReminderPending     TemplateKind = "reminder-pending"
	TemplateReminderOverdue     TemplateKind = "reminder-overdue"
	TemplateInvoice             TemplateKind = "invoice"
	TemplatePaymentConfirmation TemplateKind = "payment-confirmation"
)

type Recipient struct {
	OwnerRef    string `json:"ownerRef"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

// RecipientFor builds the notification recipient of a customer.
func RecipientFor(ownerRef string, c Customer) Recipient {
	return Recipient{
		OwnerRef:    ownerRef,
		Name:        c.Name,
		Email:       c.Email,
		Phone:       c.Phone,
		DeviceToken: c.DeviceToken,
	}
}

// NotificationMessage is the queued payload handed to the notification worker.
type NotificationMessage struct {
	ID        string         `json:"id"`
	Recipient Recipient      `json:"recipient"`
	Kind      TemplateKind   `json:"kind"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
}
