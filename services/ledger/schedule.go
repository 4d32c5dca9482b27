package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dueOffsetDays is the grace period between the start of a billing period and its due date.
const dueOffsetDays = 30

// plannedMonth is one slot of a rental's schedule before it is persisted.
type plannedMonth struct {
	MonthKey string
	DueDate  time.Time
}

// planSchedule computes months 1..monthsAhead after the start month. The first
// obligation falls due 30 days after the start date; later ones 30 days after
// the first day of their month. Months starting after endDate are dropped.
func planSchedule(start time.Time, end *time.Time, monthsAhead int, loc *time.Location) []plannedMonth {
	start = start.In(loc)
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)

	plan := make([]plannedMonth, 0, monthsAhead)
	for i := 1; i <= monthsAhead; i++ {
		target := first.AddDate(0, i, 0)
		if end != nil && target.After(end.In(loc)) {
			break
		}
		due := target.AddDate(0, 0, dueOffsetDays)
		if i == 1 {
			due = start.AddDate(0, 0, dueOffsetDays)
		}
		plan = append(plan, plannedMonth{MonthKey: models.MonthKey(target), DueDate: due})
	}
	return plan
}

// GenerateSchedule creates the obligations of the next monthsAhead months that
// do not exist yet and returns only the new ones.
func (s *DefaultLedgerService) GenerateSchedule(ctx context.Context, rentalID string, monthsAhead int) ([]models.PaymentObligation, error) {
	if monthsAhead <= 0 {
		return nil, &ValidationError{Field: "monthsAhead", Message: "must be a positive integer"}
	}
	rental, err := s.GetRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, rental, monthsAhead)
}

func (s *DefaultLedgerService) generate(ctx context.Context, rental *models.Rental, monthsAhead int) ([]models.PaymentObligation, error) {
	if monthsAhead <= 0 {
		return nil, &ValidationError{Field: "monthsAhead", Message: "must be a positive integer"}
	}
	if rental.StartDate.IsZero() {
		return nil, &ValidationError{Field: "startDate", Message: "rental has no start date"}
	}
	if !rental.Status.AcceptsSchedule() {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("cannot schedule payments for a %s rental", rental.Status)}
	}

	now := s.now()
	created := make([]models.PaymentObligation, 0, monthsAhead)
	for _, slot := range planSchedule(rental.StartDate, rental.EndDate, monthsAhead, s.Settings.Location) {
		existing, err := s.Repo.FindObligationByRentalAndMonth(ctx, rental.ID, slot.MonthKey)
		if err != nil && !errors.Is(err, ledgerRepo.ErrNotFound) {
			return created, fmt.Errorf("failed to check %s for rental %s: %w", slot.MonthKey, rental.ID, err)
		}
		if existing != nil {
			continue
		}

		ob := newObligation(rental, slot.MonthKey, rental.TotalMonthlyAmount, slot.DueDate, now)
		if err := s.Repo.InsertObligation(ctx, ob); err != nil {
			if errors.Is(err, ledgerRepo.ErrDuplicate) {
				// generated concurrently by another caller
				continue
			}
			return created, fmt.Errorf("failed to insert obligation %s for rental %s: %w", slot.MonthKey, rental.ID, err)
		}
		created = append(created, *ob)
	}

	metrics.ObligationsGenerated.Add(float64(len(created)))
	if len(created) > 0 {
		s.log().Debug("schedule generated",
			zap.String("rentalId", rental.ID),
			zap.Int("monthsAhead", monthsAhead),
			zap.Int("created", len(created)))
	}
	return created, nil
}

// newObligation builds an obligation; due dates already in the past start out overdue.
func newObligation(rental *models.Rental, monthKey string, amount float64, due, now time.Time) *models.PaymentObligation {
	status := models.ObligationPending
	if due.Before(now) {
		status = models.ObligationOverdue
	}
	return &models.PaymentObligation{
		ID:        uuid.New().String(),
		RentalID:  rental.ID,
		OwnerRef:  rental.OwnerRef,
		Customer:  rental.Customer,
		MonthKey:  monthKey,
		Amount:    amount,
		DueDate:   due,
		Status:    status,
		Payments:  []models.PaymentRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
