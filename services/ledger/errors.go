package ledger

import (
	"errors"
	"fmt"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
)

// ValidationError reports bad caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidStateError means the operation is not allowed in the entity's current state.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

// CooldownError rejects a reminder sent too soon after the previous one.
type CooldownError struct {
	HoursRemaining   int
	MinutesRemaining int
	CanSendAfter     time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("reminder already sent recently; try again in %dh %dm (after %s)",
		e.HoursRemaining, e.MinutesRemaining, e.CanSendAfter.Format(time.RFC3339))
}

func newCooldownError(now, canSendAfter time.Time) *CooldownError {
	remaining := canSendAfter.Sub(now)
	return &CooldownError{
		HoursRemaining:   int(remaining / time.Hour),
		MinutesRemaining: int((remaining % time.Hour) / time.Minute),
		CanSendAfter:     canSendAfter,
	}
}

// ConcurrencyError is returned when a versioned write kept losing to another writer.
type ConcurrencyError struct {
	Entity string
	ID     string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently; retry the operation", e.Entity, e.ID)
}

// ChannelError wraps a notification, rendering or storage failure. It is only
// logged; it never fails the operation that triggered the side effect.
type ChannelError struct {
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s channel failed: %v", e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// storeErr translates repository sentinels into service errors.
func storeErr(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledgerRepo.ErrNotFound):
		return &NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, ledgerRepo.ErrVersionConflict):
		return &ConcurrencyError{Entity: entity, ID: id}
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}
