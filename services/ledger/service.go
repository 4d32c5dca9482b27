package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/metrics"
	"rentflow/models"

	"go.uber.org/zap"
)

// Settings tune the engine. Zero values are replaced by DefaultSettings.
type Settings struct {
	Location           *time.Location
	InvoicePrefix      string
	DefaultMonthsAhead int
	ReminderCooldown   time.Duration
	ReminderWindows    []int // days before due date that make a rental a reminder candidate
	ChannelTimeout     time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Location:           time.UTC,
		InvoicePrefix:      "INV",
		DefaultMonthsAhead: 12,
		ReminderCooldown:   24 * time.Hour,
		ReminderWindows:    []int{3, 1, 0},
		ChannelTimeout:     15 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.InvoicePrefix == "" {
		s.InvoicePrefix = d.InvoicePrefix
	}
	if s.DefaultMonthsAhead <= 0 {
		s.DefaultMonthsAhead = d.DefaultMonthsAhead
	}
	if s.ReminderCooldown <= 0 {
		s.ReminderCooldown = d.ReminderCooldown
	}
	if s.ReminderWindows == nil {
		s.ReminderWindows = d.ReminderWindows
	}
	if s.ChannelTimeout <= 0 {
		s.ChannelTimeout = d.ChannelTimeout
	}
	return s
}

// DefaultLedgerService is the production implementation.
type DefaultLedgerService struct {
	Repo      ledgerRepo.LedgerRepository
	Notifier  Notifier
	Renderer  DocumentRenderer
	Artifacts ArtifactStore // optional
	Logger    *zap.Logger
	Settings  Settings
	Now       func() time.Time

	inflight sync.WaitGroup
}

func NewLedgerService(
	repo ledgerRepo.LedgerRepository,
	notifier Notifier,
	renderer DocumentRenderer,
	artifacts ArtifactStore,
	logger *zap.Logger,
	settings Settings,
) *DefaultLedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultLedgerService{
		Repo:      repo,
		Notifier:  notifier,
		Renderer:  renderer,
		Artifacts: artifacts,
		Logger:    logger,
		Settings:  settings.withDefaults(),
	}
}

func (s *DefaultLedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.Settings.Location)
	}
	return time.Now().In(s.Settings.Location)
}

func (s *DefaultLedgerService) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Drain blocks until every dispatched side effect has finished.
func (s *DefaultLedgerService) Drain() {
	s.inflight.Wait()
}

// dispatch runs a channel side effect in the background with a bounded
// timeout. Failures are logged and counted, never returned.
func (s *DefaultLedgerService) dispatch(channel string, fn func(ctx context.Context) error, fields ...zap.Field) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.Settings.ChannelTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			chErr := &ChannelError{Channel: channel, Err: err}
			metrics.ChannelFailures.WithLabelValues(channel).Inc()
			s.log().Warn("side effect failed", append(fields, zap.Error(chErr))...)
		}
	}()
}

// notify queues a message on the notification channel without waiting for it.
func (s *DefaultLedgerService) notify(msg models.NotificationMessage, fields ...zap.Field) {
	if s.Notifier == nil {
		return
	}
	s.dispatch("notification", func(ctx context.Context) error {
		return s.Notifier.Send(ctx, msg)
	}, fields...)
}

// updateObligation applies mutate and writes the result under the obligation's
// version. A version conflict reloads the obligation and retries exactly once.
// mutate returns false when there is nothing to write.
func (s *DefaultLedgerService) updateObligation(
	ctx context.Context,
	current *models.PaymentObligation,
	mutate func(ob *models.PaymentObligation) (bool, error),
) (*models.PaymentObligation, bool, error) {
	id := current.ID
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			reloaded, err := s.Repo.GetObligation(ctx, id)
			if err != nil {
				return nil, false, storeErr(err, "obligation", id)
			}
			current = reloaded
		}

		work := cloneObligation(current)
		changed, err := mutate(work)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return work, false, nil
		}

		err = s.Repo.UpdateObligation(ctx, work)
		if err == nil {
			return work, true, nil
		}
		if !errors.Is(err, ledgerRepo.ErrVersionConflict) {
			return nil, false, storeErr(err, "obligation", id)
		}
		s.log().Debug("obligation version conflict", zap.String("obligationId", id), zap.Int("attempt", attempt+1))
	}
	return nil, false, &ConcurrencyError{Entity: "obligation", ID: id}
}

func cloneObligation(ob *models.PaymentObligation) *models.PaymentObligation {
	c := *ob
	c.Payments = append([]models.PaymentRecord(nil), ob.Payments...)
	return &c
}

// daysBetween counts calendar days from a to b in loc; negative when b is earlier.
func daysBetween(a, b time.Time, loc *time.Location) int {
	a, b = a.In(loc), b.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

var _ LedgerService = (*DefaultLedgerService)(nil)
