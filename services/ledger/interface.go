package ledger

import (
	"context"

	"rentflow/models"
)

// LedgerService is the rental payment lifecycle engine.
type LedgerService interface {
	CreateRental(ctx context.Context, in models.RentalInput) (*models.Rental, []models.PaymentObligation, error)
	GetRental(ctx context.Context, id string) (*models.Rental, error)
	ListRentals(ctx context.Context, status models.RentalStatus) ([]models.Rental, error)
	GenerateSchedule(ctx context.Context, rentalID string, monthsAhead int) ([]models.PaymentObligation, error)
	AddObligation(ctx context.Context, rentalID string, in models.ObligationInput) (*models.PaymentObligation, error)
	DeleteObligation(ctx context.Context, id string) error

	RunDailySweep(ctx context.Context) (*models.SweepReport, error)
	SendReminder(ctx context.Context, rentalID string, trigger models.ReminderTrigger) (*models.ReminderResult, error)
	RunScheduledReminders(ctx context.Context) (*models.ReminderPassReport, error)

	RecordPayment(ctx context.Context, in models.PaymentInput) (*models.PaymentResult, error)
	IssueInvoice(ctx context.Context, paymentEventID string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, rentalID string) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)

	DuesBreakdown(ctx context.Context, filter models.DuesFilter) (*models.DuesReport, error)
	MonthlyCollection(ctx context.Context, monthKey string) (*models.CollectionReport, error)
}

// Notifier hands a message to the notification channel. Implementations must
// not block on delivery.
type Notifier interface {
	Send(ctx context.Context, msg models.NotificationMessage) error
}

// DocumentRenderer turns invoice data into a document artifact. It must be pure.
type DocumentRenderer interface {
	Render(doc models.InvoiceDocument) ([]byte, error)
}

// ArtifactStore persists rendered invoices and returns a retrievable reference.
type ArtifactStore interface {
	SaveInvoice(ctx context.Context, number string, pdf []byte) (string, error)
}
