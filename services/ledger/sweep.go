package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rentflow/metrics"
	"rentflow/models"

	"go.uber.org/zap"
)

const (
	reasonOverdue = "overdue"
	reasonDueSoon = "due_soon"
)

// RunDailySweep moves pending obligations whose due date has passed to overdue
// and reports the rentals worth reminding. It never sends anything itself.
func (s *DefaultLedgerService) RunDailySweep(ctx context.Context) (*models.SweepReport, error) {
	start := time.Now()
	now := s.now()
	loc := s.Settings.Location
	logger := s.log()

	cutoff := startOfDay(now, loc).AddDate(0, 0, maxWindow(s.Settings.ReminderWindows)+1)
	pending, err := s.Repo.FindObligationsDueBy(ctx, models.ObligationPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending obligations: %w", err)
	}

	byRental := make(map[string][]models.PaymentObligation)
	for _, ob := range pending {
		byRental[ob.RentalID] = append(byRental[ob.RentalID], ob)
	}
	rentalIDs := make([]string, 0, len(byRental))
	for id := range byRental {
		rentalIDs = append(rentalIDs, id)
	}
	sort.Strings(rentalIDs)

	report := &models.SweepReport{
		RunAt:      now,
		Scanned:    len(pending),
		Failures:   []models.SweepFailure{},
		Candidates: []models.ReminderCandidate{},
	}
	for _, rentalID := range rentalIDs {
		marked, candidate, err := s.sweepRental(ctx, rentalID, byRental[rentalID], now)
		report.MarkedOverdue += marked
		if err != nil {
			report.RentalsFailed++
			report.Failures = append(report.Failures, models.SweepFailure{RentalID: rentalID, Error: err.Error()})
			metrics.SweepRentalFailures.Inc()
			logger.Error("sweep failed for rental", zap.String("rentalId", rentalID), zap.Error(err))
			continue
		}
		report.RentalsProcessed++
		if candidate != nil {
			report.Candidates = append(report.Candidates, *candidate)
		}
	}

	report.Duration = time.Since(start)
	metrics.ObligationsMarkedOverdue.Add(float64(report.MarkedOverdue))
	metrics.SweepDuration.Observe(report.Duration.Seconds())
	logger.Info("daily sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("markedOverdue", report.MarkedOverdue),
		zap.Int("rentalsProcessed", report.RentalsProcessed),
		zap.Int("rentalsFailed", report.RentalsFailed),
		zap.Int("candidates", len(report.Candidates)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// sweepRental evaluates one rental's pending obligations. The returned count is
// valid even when err is non-nil. Obligations are marked before the rental is
// read, so an unreadable rental only costs its reminder candidate.
func (s *DefaultLedgerService) sweepRental(ctx context.Context, rentalID string, obs []models.PaymentObligation, now time.Time) (int, *models.ReminderCandidate, error) {
	var (
		marked     int
		overdueIDs []string
		dueSoonIDs []string
	)
	for i := range obs {
		ob := &obs[i]
		if !ob.DueDate.Before(now) {
			if s.inReminderWindow(now, ob.DueDate) {
				dueSoonIDs = append(dueSoonIDs, ob.ID)
			}
			continue
		}

		_, changed, err := s.updateObligation(ctx, ob, func(cur *models.PaymentObligation) (bool, error) {
			if cur.Status != models.ObligationPending || !cur.DueDate.Before(now) {
				return false, nil
			}
			cur.Status = models.ObligationOverdue
			cur.UpdatedAt = now
			return true, nil
		})
		if err != nil {
			return marked, nil, fmt.Errorf("obligation %s: %w", ob.ID, err)
		}
		if changed {
			marked++
			overdueIDs = append(overdueIDs, ob.ID)
		}
	}

	if len(overdueIDs) == 0 && len(dueSoonIDs) == 0 {
		return marked, nil, nil
	}
	rental, err := s.Repo.GetRental(ctx, rentalID)
	if err != nil {
		s.log().Warn("sweep could not load rental, skipping reminder candidate",
			zap.String("rentalId", rentalID), zap.Error(err))
		return marked, nil, nil
	}
	if rental.Status != models.RentalStatusActive {
		return marked, nil, nil
	}
	switch {
	case len(overdueIDs) > 0:
		return marked, &models.ReminderCandidate{RentalID: rentalID, Reason: reasonOverdue, ObligationIDs: overdueIDs}, nil
	case len(dueSoonIDs) > 0:
		return marked, &models.ReminderCandidate{RentalID: rentalID, Reason: reasonDueSoon, ObligationIDs: dueSoonIDs}, nil
	}
	return marked, nil, nil
}

// inReminderWindow reports whether the calendar days until due match a configured window.
func (s *DefaultLedgerService) inReminderWindow(now, due time.Time) bool {
	days := daysBetween(now, due, s.Settings.Location)
	for _, w := range s.Settings.ReminderWindows {
		if days == w {
			return true
		}
	}
	return false
}

func maxWindow(windows []int) int {
	m := 0
	for _, w := range windows {
		if w > m {
			m = w
		}
	}
	return m
}
