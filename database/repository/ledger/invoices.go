package ledgerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *MongoLedgerRepo) InsertInvoice(ctx context.Context, inv *models.Invoice) error {
	if _, err := r.invoices.InsertOne(ctx, inv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *MongoLedgerRepo) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.invoices.FindOne(ctx, bson.M{"id": id}).Decode(&inv); err != nil {
		return nil, notFoundOr(err)
	}
	return &inv, nil
}

func (r *MongoLedgerRepo) FindInvoiceByPaymentEvent(ctx context.Context, eventID string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.invoices.FindOne(ctx, bson.M{"paymentEventId": eventID}).Decode(&inv); err != nil {
		return nil, notFoundOr(err)
	}
	return &inv, nil
}

func (r *MongoLedgerRepo) ListInvoicesByRental(ctx context.Context, rentalID string) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "generatedAt", Value: 1}})
	cursor, err := r.invoices.Find(ctx, bson.M{"rentalId": rentalID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, fmt.Errorf("error decoding invoices: %w", err)
	}
	return invoices, nil
}

func (r *MongoLedgerRepo) MarkInvoiceDelivered(ctx context.Context, id string, deliveredAt time.Time, artifactRef string) error {
	set := bson.M{
		"delivered":   true,
		"deliveredAt": deliveredAt,
	}
	if artifactRef != "" {
		set["artifactRef"] = artifactRef
	}
	res, err := r.invoices.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to mark invoice %s delivered: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// NextInvoiceSequence uses a single findOneAndUpdate so the read and the
// increment happen atomically on the server.
func (r *MongoLedgerRepo) NextInvoiceSequence(ctx context.Context, bucket string) (int64, error) {
	filter := bson.M{"_id": "invoice:" + bucket}
	update := bson.M{"$inc": bson.M{"seq": 1}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := r.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced to create the bucket; the loser retries as a plain increment.
		err = r.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("invoice counter %s vanished during increment", bucket)
		}
		return 0, fmt.Errorf("failed to increment invoice counter %s: %w", bucket, err)
	}
	return doc.Seq, nil
}
