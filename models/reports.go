// File: models/reports.go
package models

import "time"

type ReminderTrigger string

const (
	TriggerManual    ReminderTrigger = "manual"
	TriggerScheduled ReminderTrigger = "scheduled"
)

// ReminderCandidate is a rental the sweep considers worth reminding.
type ReminderCandidate struct {
	RentalID      string   `json:"rentalId"`
	Reason        string   `json:"reason"` // "overdue" or "due_soon"
	ObligationIDs []string `json:"obligationIds"`
}

type SweepFailure struct {
	RentalID string `json:"rentalId"`
	Error    string `json:"error"`
}

// SweepReport summarises one run of the daily status sweep.
type SweepReport struct {
	RunAt            time.Time           `json:"runAt"`
	Scanned          int                 `json:"scanned"`
	MarkedOverdue    int                 `json:"markedOverdue"`
	RentalsProcessed int                 `json:"rentalsProcessed"`
	RentalsFailed    int                 `json:"rentalsFailed"`
	Failures         []SweepFailure      `json:"failures"`
	Candidates       []ReminderCandidate `json:"candidates"`
	Duration         time.Duration       `json:"duration"`
}

// ReminderLine is one outstanding obligation inside a reminder.
type ReminderLine struct {
	ObligationID string           `json:"obligationId"`
	MonthKey     string           `json:"monthKey"`
	Status       ObligationStatus `json:"status"`
	DueDate      time.Time        `json:"dueDate"`
	Outstanding  float64          `json:"outstanding"`
	DaysOverdue  int              `json:"daysOverdue,omitempty"`
	DaysUntilDue int              `json:"daysUntilDue,omitempty"`
}

type ReminderResult struct {
	RentalID         string          `json:"rentalId"`
	Trigger          ReminderTrigger `json:"trigger"`
	Template         TemplateKind    `json:"template"`
	Recipient        Recipient       `json:"recipient"`
	Lines            []ReminderLine  `json:"lines"`
	TotalOutstanding float64         `json:"totalOutstanding"`
	SentAt           time.Time       `json:"sentAt"`
	NextAllowedAt    time.Time       `json:"nextAllowedAt"`
}

// ReminderPassReport summarises a scheduled reminder pass.
type ReminderPassReport struct {
	RunAt      time.Time      `json:"runAt"`
	Candidates int            `json:"candidates"`
	Sent       int            `json:"sent"`
	Skipped    int            `json:"skipped"` // cooldown or nothing outstanding
	Failed     int            `json:"failed"`
	Failures   []SweepFailure `json:"failures"`
}

// PaymentResult is returned after a payment has been applied.
type PaymentResult struct {
	Obligation *PaymentObligation `json:"obligation"`
	Payment    PaymentRecord      `json:"payment"`
	Invoice    *Invoice           `json:"invoice,omitempty"`
	Replayed   bool               `json:"replayed"`
}

// DuesFilter holds exactly the filters the dues report recognises.
type DuesFilter struct {
	Status        ObligationStatus `form:"status"`
	MonthKey      string           `form:"month"`
	CustomerEmail string           `form:"customer_email"`
}

type DueLine struct {
	ObligationID string           `json:"obligationId"`
	RentalID     string           `json:"rentalId"`
	MonthKey     string           `json:"monthKey"`
	Status       ObligationStatus `json:"status"`
	Amount       float64          `json:"amount"`
	PaidAmount   float64          `json:"paidAmount"`
	Outstanding  float64          `json:"outstanding"`
	DueDate      time.Time        `json:"dueDate"`
	DaysOverdue  int              `json:"daysOverdue"`
}

type CustomerDues struct {
	OwnerRef     string    `json:"ownerRef"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PendingTotal float64   `json:"pendingTotal"`
	OverdueTotal float64   `json:"overdueTotal"`
	PartialTotal float64   `json:"partialTotal"`
	TotalDue     float64   `json:"totalDue"`
	Obligations  []DueLine `json:"obligations"`
}

type DuesReport struct {
	TotalDue   float64        `json:"totalDue"`
	ByCustomer []CustomerDues `json:"byCustomer"`
	All        []DueLine      `json:"all"`
}

type CollectedPayment struct {
	ObligationID  string    `json:"obligationId"`
	RentalID      string    `json:"rentalId"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	MonthKey      string    `json:"monthKey"`
	Amount        float64   `json:"amount"`
	PaidDate      time.Time `json:"paidDate"`
	PaymentMethod string    `json:"paymentMethod"`
}

type CollectionReport struct {
	MonthKey       string             `json:"monthKey"`
	TotalCollected float64            `json:"totalCollected"`
	PaymentsCount  int                `json:"paymentsCount"`
	AveragePayment float64            `json:"averagePayment"`
	Payments       []CollectedPayment `json:"payments"`
}
