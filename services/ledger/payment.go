package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPaymentMethod = "cash"

// RecordPayment applies a payment to an obligation. The payment event is stored
// inside the obligation in the same versioned write as the status change, so a
// replayed event id is recognised and changes nothing. A payment that settles
// the obligation issues its invoice.
func (s *DefaultLedgerService) RecordPayment(ctx context.Context, in models.PaymentInput) (*models.PaymentResult, error) {
	if strings.TrimSpace(in.ObligationID) == "" {
		return nil, &ValidationError{Field: "obligationId", Message: "required"}
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = defaultPaymentMethod
	}

	ob, err := s.Repo.GetObligation(ctx, in.ObligationID)
	if err != nil {
		return nil, storeErr(err, "obligation", in.ObligationID)
	}

	eventID := strings.TrimSpace(in.PaymentEventID)
	if eventID == "" {
		eventID = uuid.New().String()
	} else if _, ok := ob.FindPayment(eventID); !ok {
		owner, err := s.Repo.FindObligationByPaymentEvent(ctx, eventID)
		if err != nil && !errors.Is(err, ledgerRepo.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up payment event %s: %w", eventID, err)
		}
		if owner != nil && owner.ID != ob.ID {
			return nil, &InvalidStateError{Reason: fmt.Sprintf("payment event %s was applied to another obligation", eventID)}
		}
	}

	now := s.now()
	var (
		record   models.PaymentRecord
		replayed bool
	)
	updated, _, err := s.updateObligation(ctx, ob, func(cur *models.PaymentObligation) (bool, error) {
		if prior, ok := cur.FindPayment(eventID); ok {
			record, replayed = *prior, true
			return false, nil
		}
		if cur.Status == models.ObligationPaid {
			return false, &InvalidStateError{Reason: "obligation is already paid"}
		}

		remaining := remainingOf(*cur)
		amount := decimal.NewFromFloat(in.Amount)
		if amount.GreaterThan(remaining) {
			return false, &ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("exceeds the remaining balance of %s", remaining.StringFixed(2)),
			}
		}

		paid := decimal.NewFromFloat(cur.PaidAmount).Add(amount)
		settled := !paid.LessThan(decimal.NewFromFloat(cur.Amount))
		next := models.ObligationPartial
		if settled {
			next = models.ObligationPaid
		}
		if !cur.Status.CanTransitionTo(next) {
			return false, &InvalidStateError{Reason: fmt.Sprintf("cannot move obligation from %s to %s", cur.Status, next)}
		}

		record = models.PaymentRecord{
			EventID:    eventID,
			Amount:     amount.Round(2).InexactFloat64(),
			Method:     method,
			RecordedAt: now,
			Settled:    settled,
			Notes:      in.Notes,
		}
		replayed = false
		cur.PaidAmount = paid.Round(2).InexactFloat64()
		cur.Status = next
		cur.PaymentMethod = &method
		cur.Payments = append(cur.Payments, record)
		if settled {
			paidAt := now
			cur.PaidDate = &paidAt
		}
		cur.UpdatedAt = now
		return true, nil
	})
	if errors.Is(err, ledgerRepo.ErrDuplicate) {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("payment event %s was applied to another obligation", eventID)}
	}
	if err != nil {
		return nil, err
	}

	result := &models.PaymentResult{Obligation: updated, Payment: record, Replayed: replayed}
	logger := s.log().With(
		zap.String("obligationId", updated.ID),
		zap.String("rentalId", updated.RentalID),
		zap.String("paymentEventId", eventID))

	switch {
	case replayed:
		metrics.PaymentsRecorded.WithLabelValues("replayed").Inc()
		logger.Info("payment event replayed")
	default:
		metrics.PaymentsRecorded.WithLabelValues(string(updated.Status)).Inc()
		logger.Info("payment recorded",
			zap.Float64("amount", record.Amount),
			zap.String("status", string(updated.Status)))
		s.notify(paymentConfirmation(updated, record), zap.String("paymentEventId", eventID))
	}

	if record.Settled {
		inv, err := s.IssueInvoice(ctx, eventID)
		if err != nil {
			// the payment stands; replaying the event issues the invoice later
			logger.Error("failed to issue invoice", zap.Error(err))
		} else {
			result.Invoice = inv
		}
	}
	return result, nil
}

// remainingOf is the unpaid part of an obligation, never negative.
func remainingOf(ob models.PaymentObligation) decimal.Decimal {
	rem := decimal.NewFromFloat(ob.Amount).Sub(decimal.NewFromFloat(ob.PaidAmount))
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

func paymentConfirmation(ob *models.PaymentObligation, rec models.PaymentRecord) models.NotificationMessage {
	body := fmt.Sprintf("We received %.2f for %s via %s.", rec.Amount, ob.MonthKey, rec.Method)
	if ob.Status == models.ObligationPartial {
		body += fmt.Sprintf(" %.2f remains outstanding.", ob.Remaining())
	}
	return models.NotificationMessage{
		ID:        uuid.New().String(),
		Recipient: models.RecipientFor(ob.OwnerRef, ob.Customer),
		Kind:      models.TemplatePaymentConfirmation,
		Title:     "Payment received",
		Body:      body,
		Data: map[string]any{
			"obligationId":   ob.ID,
			"rentalId":       ob.RentalID,
			"monthKey":       ob.MonthKey,
			"paymentEventId": rec.EventID,
			"amount":         rec.Amount,
			"status":         string(ob.Status),
		},
		CreatedAt: rec.RecordedAt,
	}
}
