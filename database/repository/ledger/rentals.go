package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"rentflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *MongoLedgerRepo) CreateRental(ctx context.Context, rental *models.Rental) error {
	if _, err := r.rentals.InsertOne(ctx, rental); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert rental: %w", err)
	}
	return nil
}

func (r *MongoLedgerRepo) GetRental(ctx context.Context, id string) (*models.Rental, error) {
	var rental models.Rental
	if err := r.rentals.FindOne(ctx, bson.M{"id": id}).Decode(&rental); err != nil {
		return nil, notFoundOr(err)
	}
	return &rental, nil
}

func (r *MongoLedgerRepo) ListRentalsByStatus(ctx context.Context, status models.RentalStatus) ([]models.Rental, error) {
	cursor, err := r.rentals.Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, fmt.Errorf("error listing rentals: %w", err)
	}
	defer cursor.Close(ctx)

	var rentals []models.Rental
	if err := cursor.All(ctx, &rentals); err != nil {
		return nil, fmt.Errorf("error decoding rentals: %w", err)
	}
	return rentals, nil
}

// MarkReminderSent is a compare-and-set on lastReminderSentAt, so two
// concurrent reminders for one rental cannot both pass the cooldown.
func (r *MongoLedgerRepo) MarkReminderSent(ctx context.Context, rentalID string, previous *time.Time, sentAt time.Time) (bool, error) {
	filter := bson.M{"id": rentalID}
	if previous == nil {
		filter["lastReminderSentAt"] = nil
	} else {
		filter["lastReminderSentAt"] = *previous
	}
	update := bson.M{
		"$set": bson.M{
			"lastReminderSentAt": sentAt,
			"updatedAt":          sentAt,
		},
	}

	res, err := r.rentals.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to stamp reminder time: %w", err)
	}
	return res.MatchedCount == 1, nil
}
