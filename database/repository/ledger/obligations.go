package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"rentflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoLedgerRepo) InsertObligation(ctx context.Context, ob *models.PaymentObligation) error {
	if _, err := r.obligations.InsertOne(ctx, ob); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert obligation: %w", err)
	}
	return nil
}

func (r *MongoLedgerRepo) GetObligation(ctx context.Context, id string) (*models.PaymentObligation, error) {
	return r.findOneObligation(ctx, bson.M{"id": id})
}

func (r *MongoLedgerRepo) FindObligationByRentalAndMonth(ctx context.Context, rentalID, monthKey string) (*models.PaymentObligation, error) {
	return r.findOneObligation(ctx, bson.M{"rentalId": rentalID, "monthKey": monthKey})
}

func (r *MongoLedgerRepo) FindObligationByPaymentEvent(ctx context.Context, eventID string) (*models.PaymentObligation, error) {
	return r.findOneObligation(ctx, bson.M{"payments.eventId": eventID})
}

func (r *MongoLedgerRepo) findOneObligation(ctx context.Context, filter bson.M) (*models.PaymentObligation, error) {
	var ob models.PaymentObligation
	if err := r.obligations.FindOne(ctx, filter).Decode(&ob); err != nil {
		return nil, notFoundOr(err)
	}
	return &ob, nil
}

func (r *MongoLedgerRepo) FindObligationsDueBy(ctx context.Context, status models.ObligationStatus, cutoff time.Time) ([]models.PaymentObligation, error) {
	filter := bson.M{
		"status":  status,
		"dueDate": bson.M{"$lt": cutoff},
	}
	return r.findObligations(ctx, filter)
}

func (r *MongoLedgerRepo) FindObligations(ctx context.Context, q ObligationQuery) ([]models.PaymentObligation, error) {
	filter := bson.M{}
	if len(q.Statuses) > 0 {
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if q.MonthKey != "" {
		filter["monthKey"] = q.MonthKey
	}
	if q.OwnerRef != "" {
		filter["ownerRef"] = q.OwnerRef
	}
	if q.RentalID != "" {
		filter["rentalId"] = q.RentalID
	}
	return r.findObligations(ctx, filter)
}

func (r *MongoLedgerRepo) FindPaidBetween(ctx context.Context, from, to time.Time) ([]models.PaymentObligation, error) {
	filter := bson.M{
		"status":   models.ObligationPaid,
		"paidDate": bson.M{"$gte": from, "$lt": to},
	}
	return r.findObligations(ctx, filter)
}

func (r *MongoLedgerRepo) findObligations(ctx context.Context, filter bson.M) ([]models.PaymentObligation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}})
	cursor, err := r.obligations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding obligations: %w", err)
	}
	defer cursor.Close(ctx)

	var obligations []models.PaymentObligation
	if err := cursor.All(ctx, &obligations); err != nil {
		return nil, fmt.Errorf("error decoding obligations: %w", err)
	}
	return obligations, nil
}

func (r *MongoLedgerRepo) UpdateObligation(ctx context.Context, ob *models.PaymentObligation) error {
	filter := bson.M{
		"id":      ob.ID,
		"version": ob.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"status":        ob.Status,
			"amount":        ob.Amount,
			"paidAmount":    ob.PaidAmount,
			"paidDate":      ob.PaidDate,
			"paymentMethod": ob.PaymentMethod,
			"notes":         ob.Notes,
			"payments":      ob.Payments,
			"updatedAt":     ob.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.obligations.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// payment_event_unique: the event id is already on another obligation
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update obligation %s: %w", ob.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.obligations.CountDocuments(ctx, bson.M{"id": ob.ID})
		if err != nil {
			return fmt.Errorf("failed to check obligation %s: %w", ob.ID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	ob.Version++
	return nil
}

func (r *MongoLedgerRepo) DeleteObligation(ctx context.Context, id string) error {
	res, err := r.obligations.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete obligation %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
