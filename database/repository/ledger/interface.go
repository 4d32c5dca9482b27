// File: database/repository/ledger/interface.go
package ledgerRepo

import (
	"context"
	"errors"
	"time"

	"rentflow/database"
	"rentflow/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicate       = errors.New("document already exists")
	ErrVersionConflict = errors.New("document was modified concurrently")
)

// ObligationQuery narrows obligation reads. Zero fields are not applied.
type ObligationQuery struct {
	Statuses []models.ObligationStatus
	MonthKey string
	OwnerRef string
	RentalID string
}

// LedgerRepository is the durable store behind the rental payment engine.
type LedgerRepository interface {
	CreateRental(ctx context.Context, rental *models.Rental) error
	GetRental(ctx context.Context, id string) (*models.Rental, error)
	ListRentalsByStatus(ctx context.Context, status models.RentalStatus) ([]models.Rental, error)
	// MarkReminderSent stamps lastReminderSentAt only if it still equals previous.
	MarkReminderSent(ctx context.Context, rentalID string, previous *time.Time, sentAt time.Time) (bool, error)

	InsertObligation(ctx context.Context, ob *models.PaymentObligation) error
	GetObligation(ctx context.Context, id string) (*models.PaymentObligation, error)
	FindObligationByRentalAndMonth(ctx context.Context, rentalID, monthKey string) (*models.PaymentObligation, error)
	FindObligationByPaymentEvent(ctx context.Context, eventID string) (*models.PaymentObligation, error)
	// FindObligationsDueBy returns obligations in status whose due date is before cutoff.
	FindObligationsDueBy(ctx context.Context, status models.ObligationStatus, cutoff time.Time) ([]models.PaymentObligation, error)
	FindObligations(ctx context.Context, q ObligationQuery) ([]models.PaymentObligation, error)
	FindPaidBetween(ctx context.Context, from, to time.Time) ([]models.PaymentObligation, error)
	// UpdateObligation writes ob if its version is unchanged and bumps ob.Version.
	// It returns ErrDuplicate when one of ob's payment event ids is already
	// recorded on another obligation.
	UpdateObligation(ctx context.Context, ob *models.PaymentObligation) error
	DeleteObligation(ctx context.Context, id string) error

	InsertInvoice(ctx context.Context, inv *models.Invoice) error
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	FindInvoiceByPaymentEvent(ctx context.Context, eventID string) (*models.Invoice, error)
	ListInvoicesByRental(ctx context.Context, rentalID string) ([]models.Invoice, error)
	MarkInvoiceDelivered(ctx context.Context, id string, deliveredAt time.Time, artifactRef string) error
	// NextInvoiceSequence atomically increments and returns the counter of a date bucket.
	NextInvoiceSequence(ctx context.Context, bucket string) (int64, error)
}

// MongoLedgerRepo implements LedgerRepository using MongoDB.
type MongoLedgerRepo struct {
	rentals     *mongo.Collection
	obligations *mongo.Collection
	invoices    *mongo.Collection
	counters    *mongo.Collection
}

// NewMongoLedgerRepo returns a LedgerRepository backed by MongoDB.
func NewMongoLedgerRepo() *MongoLedgerRepo {
	db := database.Database()
	return &MongoLedgerRepo{
		rentals:     db.Collection("rentals"),
		obligations: db.Collection("obligations"),
		invoices:    db.Collection("invoices"),
		counters:    db.Collection("counters"),
	}
}

func notFoundOr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

var _ LedgerRepository = (*MongoLedgerRepo)(nil)
