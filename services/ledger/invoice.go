package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FormatInvoiceNumber renders PREFIX-YYYY-MMDD-NNNN for the day bucket of at.
func FormatInvoiceNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, at.Format("2006"), at.Format("0102"), seq)
}

// IssueInvoice returns the invoice of a settling payment event, creating it on
// first use. Numbers come from an atomic per-day counter, so concurrent
// settlements never share one.
func (s *DefaultLedgerService) IssueInvoice(ctx context.Context, paymentEventID string) (*models.Invoice, error) {
	eventID := strings.TrimSpace(paymentEventID)
	if eventID == "" {
		return nil, &ValidationError{Field: "paymentEventId", Message: "required"}
	}

	// An issued invoice outlives its obligation.
	existing, err := s.Repo.FindInvoiceByPaymentEvent(ctx, eventID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up invoice for payment event %s: %w", eventID, err)
	}

	ob, err := s.Repo.FindObligationByPaymentEvent(ctx, eventID)
	if err != nil {
		return nil, storeErr(err, "payment event", eventID)
	}
	rec, ok := ob.FindPayment(eventID)
	if !ok {
		return nil, &NotFoundError{Entity: "payment event", ID: eventID}
	}
	if !rec.Settled {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("payment event %s did not settle obligation %s", eventID, ob.ID)}
	}

	now := s.now()
	seq, err := s.Repo.NextInvoiceSequence(ctx, now.Format("20060102"))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	inv := &models.Invoice{
		ID:             uuid.New().String(),
		Number:         FormatInvoiceNumber(s.Settings.InvoicePrefix, now, seq),
		PaymentEventID: eventID,
		ObligationID:   ob.ID,
		RentalID:       ob.RentalID,
		OwnerRef:       ob.OwnerRef,
		Customer:       ob.Customer,
		MonthKey:       ob.MonthKey,
		Amount:         ob.Amount,
		PaymentMethod:  rec.Method,
		GeneratedAt:    now,
	}
	if err := s.Repo.InsertInvoice(ctx, inv); err != nil {
		if errors.Is(err, ledgerRepo.ErrDuplicate) {
			winner, findErr := s.Repo.FindInvoiceByPaymentEvent(ctx, eventID)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load concurrently issued invoice: %w", findErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	metrics.InvoicesIssued.Inc()
	s.log().Info("invoice issued",
		zap.String("invoiceNumber", inv.Number),
		zap.String("paymentEventId", eventID),
		zap.String("obligationId", ob.ID))

	s.deliverInvoice(*inv, *ob)
	return inv, nil
}

// deliverInvoice renders, stores and sends the invoice in the background and
// flags it delivered once the notification is accepted by the channel queue.
func (s *DefaultLedgerService) deliverInvoice(inv models.Invoice, ob models.PaymentObligation) {
	s.dispatch("invoice", func(ctx context.Context) error {
		var items []models.RentalItem
		if rental, err := s.Repo.GetRental(ctx, inv.RentalID); err == nil {
			items = rental.Items
		}

		var artifactRef string
		if s.Renderer != nil {
			pdf, err := s.Renderer.Render(invoiceDocument(inv, ob, items))
			if err != nil {
				return fmt.Errorf("render %s: %w", inv.Number, err)
			}
			if s.Artifacts != nil {
				artifactRef, err = s.Artifacts.SaveInvoice(ctx, inv.Number, pdf)
				if err != nil {
					return fmt.Errorf("store %s: %w", inv.Number, err)
				}
			}
		}

		if s.Notifier != nil {
			if err := s.Notifier.Send(ctx, invoiceMessage(inv, artifactRef)); err != nil {
				return fmt.Errorf("notify %s: %w", inv.Number, err)
			}
		}
		return s.Repo.MarkInvoiceDelivered(ctx, inv.ID, s.now(), artifactRef)
	}, zap.String("invoiceNumber", inv.Number), zap.String("paymentEventId", inv.PaymentEventID))
}

func invoiceDocument(inv models.Invoice, ob models.PaymentObligation, items []models.RentalItem) models.InvoiceDocument {
	doc := models.InvoiceDocument{
		Number:        inv.Number,
		IssuedAt:      inv.GeneratedAt,
		CustomerName:  inv.Customer.Name,
		CustomerEmail: inv.Customer.Email,
		CustomerPhone: inv.Customer.Phone,
		RentalID:      inv.RentalID,
		MonthKey:      inv.MonthKey,
		DueDate:       ob.DueDate,
		Amount:        inv.Amount,
		PaymentMethod: inv.PaymentMethod,
		Items:         items,
	}
	if ob.PaidDate != nil {
		doc.PaidDate = *ob.PaidDate
	}
	return doc
}

func invoiceMessage(inv models.Invoice, artifactRef string) models.NotificationMessage {
	data := map[string]any{
		"invoiceNumber":  inv.Number,
		"rentalId":       inv.RentalID,
		"monthKey":       inv.MonthKey,
		"amount":         inv.Amount,
		"paymentEventId": inv.PaymentEventID,
	}
	if artifactRef != "" {
		data["artifactRef"] = artifactRef
	}
	return models.NotificationMessage{
		ID:        "invoice-" + inv.ID,
		Recipient: models.RecipientFor(inv.OwnerRef, inv.Customer),
		Kind:      models.TemplateInvoice,
		Title:     "Invoice " + inv.Number,
		Body:      fmt.Sprintf("Your rent for %s is fully paid. Invoice %s is attached.", inv.MonthKey, inv.Number),
		Data:      data,
		CreatedAt: inv.GeneratedAt,
	}
}

func (s *DefaultLedgerService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.Repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, storeErr(err, "invoice", id)
	}
	return inv, nil
}
