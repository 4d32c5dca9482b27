// FILE: database/repository/ledger/indexes.go
package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the ledger queries and invariants rely on.
func (r *MongoLedgerRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rentalIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_idx"),
		},
		{
			Keys:    bson.D{{Key: "ownerRef", Value: 1}},
			Options: options.Index().SetName("owner_ref_idx"),
		},
	}
	if _, err := r.rentals.Indexes().CreateMany(ctx, rentalIndexes); err != nil {
		return fmt.Errorf("failed to create rental indexes: %w", err)
	}

	obligationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// One obligation per rental and month.
		{
			Keys:    bson.D{{Key: "rentalId", Value: 1}, {Key: "monthKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("rental_month_unique"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "dueDate", Value: 1}},
			Options: options.Index().SetName("status_due_idx"),
		},
		{
			Keys:    bson.D{{Key: "ownerRef", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("owner_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "paidDate", Value: 1}},
			Options: options.Index().SetName("status_paid_idx"),
		},
		// A payment event belongs to exactly one obligation.
		{
			Keys: bson.D{{Key: "payments.eventId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"payments.eventId": bson.M{"$exists": true}}).
				SetName("payment_event_unique"),
		},
	}
	if _, err := r.obligations.Indexes().CreateMany(ctx, obligationIndexes); err != nil {
		return fmt.Errorf("failed to create obligation indexes: %w", err)
	}

	invoiceIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_number"),
		},
		// At most one invoice per payment event.
		{
			Keys:    bson.D{{Key: "paymentEventId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_payment_event"),
		},
		{
			Keys:    bson.D{{Key: "rentalId", Value: 1}, {Key: "generatedAt", Value: 1}},
			Options: options.Index().SetName("rental_generated_idx"),
		},
	}
	if _, err := r.invoices.Indexes().CreateMany(ctx, invoiceIndexes); err != nil {
		return fmt.Errorf("failed to create invoice indexes: %w", err)
	}
	return nil
}
