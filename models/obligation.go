// File: models/obligation.go
package models

import (
	"fmt"
	"time"
)

type ObligationStatus string

const (
	ObligationPending ObligationStatus = "pending"
	ObligationOverdue ObligationStatus = "overdue"
	ObligationPartial ObligationStatus = "partial"
	ObligationPaid    ObligationStatus = "paid"
)

// OutstandingStatuses are the statuses that still carry a balance.
var OutstandingStatuses = []ObligationStatus{ObligationPending, ObligationOverdue, ObligationPartial}

func (s ObligationStatus) IsValid() bool {
	switch s {
	case ObligationPending, ObligationOverdue, ObligationPartial, ObligationPaid:
		return true
	}
	return false
}

// IsOutstanding reports whether an obligation in this status still owes money.
func (s ObligationStatus) IsOutstanding() bool {
	return s != ObligationPaid
}

// CanTransitionTo encodes the obligation state machine. Paid is terminal and
// nothing moves back to pending or overdue once money has been received.
func (s ObligationStatus) CanTransitionTo(next ObligationStatus) bool {
	switch s {
	case ObligationPending:
		return next == ObligationOverdue || next == ObligationPartial || next == ObligationPaid
	case ObligationOverdue:
		return next == ObligationPartial || next == ObligationPaid
	case ObligationPartial:
		return next == ObligationPartial || next == ObligationPaid
	}
	return false
}

// PaymentRecord is one payment event applied to an obligation.
type PaymentRecord struct {
	EventID    string    `bson:"eventId" json:"eventId"`
	Amount     float64   `bson:"amount" json:"amount"`
	Method     string    `bson:"method" json:"method"`
	RecordedAt time.Time `bson:"recordedAt" json:"recordedAt"`
	Settled    bool      `bson:"settled" json:"settled"` // this event brought the obligation to paid
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
}

// PaymentObligation is one month's rent requirement for a rental.
type PaymentObligation struct {
	ID            string           `bson:"id" json:"id"`
	RentalID      string           `bson:"rentalId" json:"rentalId"`
	OwnerRef      string           `bson:"ownerRef" json:"ownerRef"`
	Customer      Customer         `bson:"customer" json:"customer"`
	MonthKey      string           `bson:"monthKey" json:"monthKey"`
	Amount        float64          `bson:"amount" json:"amount"`
	PaidAmount    float64          `bson:"paidAmount" json:"paidAmount"`
	DueDate       time.Time        `bson:"dueDate" json:"dueDate"`
	PaidDate      *time.Time       `bson:"paidDate" json:"paidDate"`
	Status        ObligationStatus `bson:"status" json:"status"`
	PaymentMethod *string          `bson:"paymentMethod" json:"paymentMethod"`
	Notes         string           `bson:"notes" json:"notes"`
	Payments      []PaymentRecord  `bson:"payments" json:"payments"`
	Version       int              `bson:"version" json:"version"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// Remaining is the unpaid part of the obligation, never negative.
func (o *PaymentObligation) Remaining() float64 {
	if o.PaidAmount >= o.Amount {
		return 0
	}
	return o.Amount - o.PaidAmount
}

// FindPayment returns the embedded payment event with the given id.
func (o *PaymentObligation) FindPayment(eventID string) (*PaymentRecord, bool) {
	for i := range o.Payments {
		if o.Payments[i].EventID == eventID {
			return &o.Payments[i], true
		}
	}
	return nil, false
}

// MonthKey formats the year-month bucket used to identify an obligation.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseMonthKey parses a YYYY-MM key into the first instant of that month in loc.
func ParseMonthKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: expected YYYY-MM", key)
	}
	return t, nil
}

// PaymentInput is a payment recorded against one obligation.
type PaymentInput struct {
	ObligationID   string  `json:"obligationId" binding:"required"`
	Amount         float64 `json:"amount" binding:"required"`
	Method         string  `json:"method"`
	PaymentEventID string  `json:"paymentEventId"`
	Notes          string  `json:"notes"`
}

// ObligationInput is an admin-created single obligation.
type ObligationInput struct {
	MonthKey string    `json:"monthKey" binding:"required"`
	Amount   float64   `json:"amount"`
	DueDate  time.Time `json:"dueDate"`
	Notes    string    `json:"notes"`
}
