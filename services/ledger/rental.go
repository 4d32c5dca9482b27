package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateRental resolves the customer identity, derives totals, persists the
// rental and generates its default schedule.
func (s *DefaultLedgerService) CreateRental(ctx context.Context, in models.RentalInput) (*models.Rental, []models.PaymentObligation, error) {
	if err := validateRentalInput(in); err != nil {
		return nil, nil, err
	}

	monthly, deposit := decimal.Zero, decimal.Zero
	for _, it := range in.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		monthly = monthly.Add(decimal.NewFromFloat(it.MonthlyRate).Mul(qty))
		deposit = deposit.Add(decimal.NewFromFloat(it.Deposit).Mul(qty))
	}
	if !monthly.IsPositive() {
		return nil, nil, &ValidationError{Field: "items", Message: "total monthly amount must be positive"}
	}

	now := s.now()
	in.Customer.Email = strings.TrimSpace(in.Customer.Email)
	rental := &models.Rental{
		ID:                 uuid.New().String(),
		OwnerRef:           models.OwnerRef(in.Customer.Email),
		Customer:           in.Customer,
		Items:              in.Items,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		TotalMonthlyAmount: monthly.Round(2).InexactFloat64(),
		TotalDeposit:       deposit.Round(2).InexactFloat64(),
		Status:             models.RentalStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repo.CreateRental(ctx, rental); err != nil {
		return nil, nil, fmt.Errorf("failed to create rental: %w", err)
	}

	created, err := s.generate(ctx, rental, s.Settings.DefaultMonthsAhead)
	if err != nil {
		return rental, created, err
	}
	s.log().Info("rental created",
		zap.String("rentalId", rental.ID),
		zap.String("ownerRef", rental.OwnerRef),
		zap.Int("obligations", len(created)))
	return rental, created, nil
}

func validateRentalInput(in models.RentalInput) error {
	if strings.TrimSpace(in.Customer.Name) == "" {
		return &ValidationError{Field: "customer.name", Message: "required"}
	}
	email := strings.TrimSpace(in.Customer.Email)
	if email == "" || !strings.Contains(email, "@") {
		return &ValidationError{Field: "customer.email", Message: "a valid email is required"}
	}
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"}
		}
		if it.MonthlyRate < 0 || it.Deposit < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d]", i), Message: "rates must not be negative"}
		}
	}
	if in.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Message: "required"}
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return &ValidationError{Field: "endDate", Message: "must not be before startDate"}
	}
	return nil
}

func (s *DefaultLedgerService) GetRental(ctx context.Context, id string) (*models.Rental, error) {
	rental, err := s.Repo.GetRental(ctx, id)
	if err != nil {
		return nil, storeErr(err, "rental", id)
	}
	return rental, nil
}

func (s *DefaultLedgerService) ListRentals(ctx context.Context, status models.RentalStatus) ([]models.Rental, error) {
	if status == "" {
		status = models.RentalStatusActive
	}
	if !status.IsValid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown rental status %q", status)}
	}
	rentals, err := s.Repo.ListRentalsByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	return rentals, nil
}

// AddObligation creates a single obligation for a month outside the generated schedule.
func (s *DefaultLedgerService) AddObligation(ctx context.Context, rentalID string, in models.ObligationInput) (*models.PaymentObligation, error) {
	loc := s.Settings.Location
	if _, err := models.ParseMonthKey(in.MonthKey, loc); err != nil {
		return nil, &ValidationError{Field: "monthKey", Message: err.Error()}
	}
	if in.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if in.DueDate.IsZero() {
		return nil, &ValidationError{Field: "dueDate", Message: "required"}
	}

	rental, err := s.GetRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !rental.Status.AcceptsSchedule() {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("rental is %s", rental.Status)}
	}

	existing, err := s.Repo.FindObligationByRentalAndMonth(ctx, rentalID, in.MonthKey)
	if err != nil && !errors.Is(err, ledgerRepo.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up obligation: %w", err)
	}
	if existing != nil {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("an obligation for %s already exists", in.MonthKey)}
	}

	now := s.now()
	ob := newObligation(rental, in.MonthKey, in.Amount, in.DueDate.In(loc), now)
	ob.Notes = in.Notes
	if err := s.Repo.InsertObligation(ctx, ob); err != nil {
		if errors.Is(err, ledgerRepo.ErrDuplicate) {
			return nil, &InvalidStateError{Reason: fmt.Sprintf("an obligation for %s already exists", in.MonthKey)}
		}
		return nil, fmt.Errorf("failed to insert obligation: %w", err)
	}
	metrics.ObligationsGenerated.Inc()
	return ob, nil
}

// DeleteObligation removes an obligation. Invoices already issued for it are kept.
func (s *DefaultLedgerService) DeleteObligation(ctx context.Context, id string) error {
	if err := s.Repo.DeleteObligation(ctx, id); err != nil {
		return storeErr(err, "obligation", id)
	}
	s.log().Info("obligation deleted", zap.String("obligationId", id))
	return nil
}

func (s *DefaultLedgerService) ListInvoices(ctx context.Context, rentalID string) ([]models.Invoice, error) {
	if _, err := s.GetRental(ctx, rentalID); err != nil {
		return nil, err
	}
	invoices, err := s.Repo.ListInvoicesByRental(ctx, rentalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
