package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SendReminder aggregates a rental's outstanding obligations into one message.
// Manual and scheduled reminders share the same per-rental cooldown, and the
// cooldown is stamped before the message is handed to the channel.
func (s *DefaultLedgerService) SendReminder(ctx context.Context, rentalID string, trigger models.ReminderTrigger) (*models.ReminderResult, error) {
	if trigger != models.TriggerManual && trigger != models.TriggerScheduled {
		return nil, &ValidationError{Field: "trigger", Message: fmt.Sprintf("unknown trigger %q", trigger)}
	}
	rental, err := s.GetRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cooldown := s.Settings.ReminderCooldown

	if rental.LastReminderSentAt != nil {
		next := rental.LastReminderSentAt.Add(cooldown)
		if now.Before(next) {
			metrics.RemindersRejected.WithLabelValues(string(trigger), "cooldown").Inc()
			return nil, newCooldownError(now, next.In(s.Settings.Location))
		}
	}
	if trigger == models.TriggerScheduled && rental.Status != models.RentalStatusActive {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("rental is %s", rental.Status)}
	}

	obs, err := s.Repo.FindObligations(ctx, obligationQuery(rentalID))
	if err != nil {
		return nil, fmt.Errorf("failed to load obligations for rental %s: %w", rentalID, err)
	}
	lines, total, overdue := s.reminderLines(obs, now)
	if len(lines) == 0 {
		metrics.RemindersRejected.WithLabelValues(string(trigger), "nothing_outstanding").Inc()
		return nil, &InvalidStateError{Reason: "no outstanding balance"}
	}

	ok, err := s.Repo.MarkReminderSent(ctx, rentalID, rental.LastReminderSentAt, now)
	if err != nil {
		return nil, storeErr(err, "rental", rentalID)
	}
	if !ok {
		return nil, s.lostReminderRace(ctx, rentalID, trigger, now)
	}

	template := models.TemplateReminderPending
	if overdue {
		template = models.TemplateReminderOverdue
	}
	result := &models.ReminderResult{
		RentalID:         rentalID,
		Trigger:          trigger,
		Template:         template,
		Recipient:        models.RecipientFor(rental.OwnerRef, rental.Customer),
		Lines:            lines,
		TotalOutstanding: total,
		SentAt:           now,
		NextAllowedAt:    now.Add(cooldown),
	}
	metrics.RemindersSent.WithLabelValues(string(trigger), string(template)).Inc()

	s.notify(reminderMessage(result), zap.String("rentalId", rentalID), zap.String("template", string(template)))
	s.log().Info("reminder sent",
		zap.String("rentalId", rentalID),
		zap.String("trigger", string(trigger)),
		zap.String("template", string(template)),
		zap.Int("obligations", len(lines)),
		zap.Float64("totalOutstanding", total))
	return result, nil
}

// lostReminderRace explains why the cooldown stamp could not be written.
func (s *DefaultLedgerService) lostReminderRace(ctx context.Context, rentalID string, trigger models.ReminderTrigger, now time.Time) error {
	current, err := s.GetRental(ctx, rentalID)
	if err != nil {
		return err
	}
	if current.LastReminderSentAt != nil {
		next := current.LastReminderSentAt.Add(s.Settings.ReminderCooldown)
		if now.Before(next) {
			metrics.RemindersRejected.WithLabelValues(string(trigger), "cooldown").Inc()
			return newCooldownError(now, next.In(s.Settings.Location))
		}
	}
	return &ConcurrencyError{Entity: "rental", ID: rentalID}
}

func obligationQuery(rentalID string) ledgerRepo.ObligationQuery {
	return ledgerRepo.ObligationQuery{RentalID: rentalID, Statuses: models.OutstandingStatuses}
}

// reminderLines builds one line per obligation that still owes money and
// reports whether any of them is past due.
func (s *DefaultLedgerService) reminderLines(obs []models.PaymentObligation, now time.Time) ([]models.ReminderLine, float64, bool) {
	loc := s.Settings.Location
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].DueDate.Before(obs[j].DueDate) })

	var (
		lines   []models.ReminderLine
		total   = decimal.Zero
		overdue bool
	)
	for _, ob := range obs {
		if !ob.Status.IsOutstanding() {
			continue
		}
		outstanding := remainingOf(ob)
		if !outstanding.IsPositive() {
			continue
		}
		line := models.ReminderLine{
			ObligationID: ob.ID,
			MonthKey:     ob.MonthKey,
			Status:       ob.Status,
			DueDate:      ob.DueDate,
			Outstanding:  outstanding.Round(2).InexactFloat64(),
		}
		if ob.Status == models.ObligationOverdue || ob.DueDate.Before(now) {
			overdue = true
			line.DaysOverdue = max(daysBetween(ob.DueDate, now, loc), 0)
		} else {
			line.DaysUntilDue = daysBetween(now, ob.DueDate, loc)
		}
		lines = append(lines, line)
		total = total.Add(outstanding)
	}
	return lines, total.Round(2).InexactFloat64(), overdue
}

func reminderMessage(r *models.ReminderResult) models.NotificationMessage {
	title := "Upcoming rent payment"
	if r.Template == models.TemplateReminderOverdue {
		title = "Rent payment overdue"
	}
	body := fmt.Sprintf("Hi %s, you have %d outstanding rent payment(s) totalling %.2f.",
		r.Recipient.Name, len(r.Lines), r.TotalOutstanding)
	return models.NotificationMessage{
		ID:        uuid.New().String(),
		Recipient: r.Recipient,
		Kind:      r.Template,
		Title:     title,
		Body:      body,
		Data: map[string]any{
			"rentalId":         r.RentalID,
			"totalOutstanding": r.TotalOutstanding,
			"lines":            r.Lines,
		},
		CreatedAt: r.SentAt,
	}
}

// RunScheduledReminders recomputes reminder candidates from the stored
// obligations and sends each one through the cooldown gate. Rentals still in
// cooldown or with nothing outstanding are skipped.
func (s *DefaultLedgerService) RunScheduledReminders(ctx context.Context) (*models.ReminderPassReport, error) {
	now := s.now()
	candidates, err := s.reminderCandidates(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &models.ReminderPassReport{RunAt: now, Candidates: len(candidates), Failures: []models.SweepFailure{}}
	for _, c := range candidates {
		_, err := s.SendReminder(ctx, c.RentalID, models.TriggerScheduled)
		var cooldownErr *CooldownError
		var stateErr *InvalidStateError
		switch {
		case err == nil:
			report.Sent++
		case errors.As(err, &cooldownErr), errors.As(err, &stateErr):
			report.Skipped++
		default:
			report.Failed++
			report.Failures = append(report.Failures, models.SweepFailure{RentalID: c.RentalID, Error: err.Error()})
			s.log().Error("scheduled reminder failed", zap.String("rentalId", c.RentalID), zap.Error(err))
		}
	}

	s.log().Info("scheduled reminders finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// reminderCandidates applies the sweep's candidate rule to persisted state:
// rentals with anything past due, or a pending obligation inside a reminder window.
func (s *DefaultLedgerService) reminderCandidates(ctx context.Context, now time.Time) ([]models.ReminderCandidate, error) {
	late, err := s.Repo.FindObligations(ctx, ledgerRepo.ObligationQuery{
		Statuses: []models.ObligationStatus{models.ObligationOverdue, models.ObligationPartial},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load overdue obligations: %w", err)
	}
	cutoff := startOfDay(now, s.Settings.Location).AddDate(0, 0, maxWindow(s.Settings.ReminderWindows)+1)
	pending, err := s.Repo.FindObligationsDueBy(ctx, models.ObligationPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending obligations: %w", err)
	}

	byRental := make(map[string]*models.ReminderCandidate)
	var order []string
	add := func(ob models.PaymentObligation, reason string) {
		c, ok := byRental[ob.RentalID]
		if !ok {
			c = &models.ReminderCandidate{RentalID: ob.RentalID, Reason: reason}
			byRental[ob.RentalID] = c
			order = append(order, ob.RentalID)
		}
		if reason == reasonOverdue {
			c.Reason = reasonOverdue
		}
		c.ObligationIDs = append(c.ObligationIDs, ob.ID)
	}

	for _, ob := range late {
		if ob.Status == models.ObligationOverdue || ob.DueDate.Before(now) {
			add(ob, reasonOverdue)
		}
	}
	for _, ob := range pending {
		switch {
		case ob.DueDate.Before(now):
			add(ob, reasonOverdue)
		case s.inReminderWindow(now, ob.DueDate):
			add(ob, reasonDueSoon)
		}
	}

	sort.Strings(order)
	out := make([]models.ReminderCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byRental[id])
	}
	return out, nil
}
