package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/models"

	"github.com/shopspring/decimal"
)

type customerTotals struct {
	dues    *models.CustomerDues
	pending decimal.Decimal
	overdue decimal.Decimal
	partial decimal.Decimal
	owing   decimal.Decimal
}

// DuesBreakdown groups unpaid obligations by customer. It only reads.
func (s *DefaultLedgerService) DuesBreakdown(ctx context.Context, filter models.DuesFilter) (*models.DuesReport, error) {
	loc := s.Settings.Location
	q := ledgerRepo.ObligationQuery{Statuses: models.OutstandingStatuses}

	if filter.Status != "" {
		if !filter.Status.IsValid() || !filter.Status.IsOutstanding() {
			return nil, &ValidationError{Field: "status", Message: "must be one of pending, overdue, partial"}
		}
		q.Statuses = []models.ObligationStatus{filter.Status}
	}
	if filter.MonthKey != "" {
		if _, err := models.ParseMonthKey(filter.MonthKey, loc); err != nil {
			return nil, &ValidationError{Field: "month", Message: err.Error()}
		}
		q.MonthKey = filter.MonthKey
	}
	if email := strings.TrimSpace(filter.CustomerEmail); email != "" {
		q.OwnerRef = models.OwnerRef(email)
	}

	obs, err := s.Repo.FindObligations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load dues: %w", err)
	}

	now := s.now()
	total := decimal.Zero
	groups := make(map[string]*customerTotals)
	report := &models.DuesReport{ByCustomer: []models.CustomerDues{}, All: []models.DueLine{}}

	for _, ob := range obs {
		if !ob.Status.IsOutstanding() {
			continue
		}
		outstanding := remainingOf(ob)
		line := models.DueLine{
			ObligationID: ob.ID,
			RentalID:     ob.RentalID,
			MonthKey:     ob.MonthKey,
			Status:       ob.Status,
			Amount:       ob.Amount,
			PaidAmount:   ob.PaidAmount,
			Outstanding:  outstanding.Round(2).InexactFloat64(),
			DueDate:      ob.DueDate,
		}
		if ob.DueDate.Before(now) {
			line.DaysOverdue = max(daysBetween(ob.DueDate, now, loc), 0)
		}

		g, ok := groups[ob.OwnerRef]
		if !ok {
			g = &customerTotals{dues: &models.CustomerDues{
				OwnerRef:    ob.OwnerRef,
				Name:        ob.Customer.Name,
				Email:       ob.Customer.Email,
				Phone:       ob.Customer.Phone,
				Obligations: []models.DueLine{},
			}}
			groups[ob.OwnerRef] = g
		}
		switch ob.Status {
		case models.ObligationPending:
			g.pending = g.pending.Add(outstanding)
		case models.ObligationOverdue:
			g.overdue = g.overdue.Add(outstanding)
		case models.ObligationPartial:
			g.partial = g.partial.Add(outstanding)
		}
		g.owing = g.owing.Add(outstanding)
		g.dues.Obligations = append(g.dues.Obligations, line)

		total = total.Add(outstanding)
		report.All = append(report.All, line)
	}

	for _, g := range groups {
		g.dues.PendingTotal = g.pending.Round(2).InexactFloat64()
		g.dues.OverdueTotal = g.overdue.Round(2).InexactFloat64()
		g.dues.PartialTotal = g.partial.Round(2).InexactFloat64()
		g.dues.TotalDue = g.owing.Round(2).InexactFloat64()
		report.ByCustomer = append(report.ByCustomer, *g.dues)
	}
	sort.Slice(report.ByCustomer, func(i, j int) bool {
		a, b := report.ByCustomer[i], report.ByCustomer[j]
		if a.TotalDue != b.TotalDue {
			return a.TotalDue > b.TotalDue
		}
		return a.OwnerRef < b.OwnerRef
	})
	sort.SliceStable(report.All, func(i, j int) bool { return report.All[i].DueDate.Before(report.All[j].DueDate) })

	report.TotalDue = total.Round(2).InexactFloat64()
	return report, nil
}

// MonthlyCollection totals the obligations settled in a calendar month,
// bucketed by paid date rather than by the obligation's own month.
func (s *DefaultLedgerService) MonthlyCollection(ctx context.Context, monthKey string) (*models.CollectionReport, error) {
	loc := s.Settings.Location
	if monthKey == "" {
		monthKey = models.MonthKey(s.now())
	}
	from, err := models.ParseMonthKey(monthKey, loc)
	if err != nil {
		return nil, &ValidationError{Field: "month", Message: err.Error()}
	}
	to := from.AddDate(0, 1, 0)

	obs, err := s.Repo.FindPaidBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load collections for %s: %w", monthKey, err)
	}

	total := decimal.Zero
	report := &models.CollectionReport{MonthKey: monthKey, Payments: []models.CollectedPayment{}}
	for _, ob := range obs {
		if ob.Status != models.ObligationPaid || ob.PaidDate == nil {
			continue
		}
		method := ""
		if ob.PaymentMethod != nil {
			method = *ob.PaymentMethod
		}
		report.Payments = append(report.Payments, models.CollectedPayment{
			ObligationID:  ob.ID,
			RentalID:      ob.RentalID,
			CustomerName:  ob.Customer.Name,
			CustomerEmail: ob.Customer.Email,
			MonthKey:      ob.MonthKey,
			Amount:        ob.PaidAmount,
			PaidDate:      *ob.PaidDate,
			PaymentMethod: method,
		})
		total = total.Add(decimal.NewFromFloat(ob.PaidAmount))
	}
	sort.SliceStable(report.Payments, func(i, j int) bool {
		return report.Payments[i].PaidDate.Before(report.Payments[j].PaidDate)
	})

	report.PaymentsCount = len(report.Payments)
	report.TotalCollected = total.Round(2).InexactFloat64()
	if report.PaymentsCount > 0 {
		report.AveragePayment = total.Div(decimal.NewFromInt(int64(report.PaymentsCount))).Round(2).InexactFloat64()
	}
	return report, nil
}
