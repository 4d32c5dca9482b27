// File: models/rental.go
package models

import (
	"strings"
	"time"
)

type RentalStatus string

const (
	RentalStatusActive    RentalStatus = "active"
	RentalStatusCompleted RentalStatus = "completed"
	RentalStatusCancelled RentalStatus = "cancelled"
	RentalStatusOnHold    RentalStatus = "on_hold"
)

// IsValid reports whether s is a known rental status.
func (s RentalStatus) IsValid() bool {
	switch s {
	case RentalStatusActive, RentalStatusCompleted, RentalStatusCancelled, RentalStatusOnHold:
		return true
	}
	return false
}

// AcceptsSchedule reports whether new obligations may still be generated.
func (s RentalStatus) AcceptsSchedule() bool {
	return s == RentalStatusActive || s == RentalStatusOnHold
}

// Customer is the renter's contact snapshot.
type Customer struct {
	Name        string `bson:"name" json:"name"`
	Email       string `bson:"email" json:"email"`
	Phone       string `bson:"phone" json:"phone"`
	DeviceToken string `bson:"deviceToken,omitempty" json:"deviceToken,omitempty"` // FCM token from the marketplace app
}

// OwnerRef collapses the customer identity into one canonical key.
// Every obligation and invoice carries it so reads never match on userId OR email.
func OwnerRef(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RentalItem struct {
	ItemRef     string  `bson:"itemRef" json:"itemRef"` // listing or catalog item id
	Name        string  `bson:"name" json:"name"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	MonthlyRate float64 `bson:"monthlyRate" json:"monthlyRate"`
	Deposit     float64 `bson:"deposit" json:"deposit"`
}

// Rental is a recurring lease of one or more items.
type Rental struct {
	ID                 string       `bson:"id" json:"id"`
	OwnerRef           string       `bson:"ownerRef" json:"ownerRef"`
	Customer           Customer     `bson:"customer" json:"customer"`
	Items              []RentalItem `bson:"items" json:"items"`
	StartDate          time.Time    `bson:"startDate" json:"startDate"`
	EndDate            *time.Time   `bson:"endDate,omitempty" json:"endDate,omitempty"`
	TotalMonthlyAmount float64      `bson:"totalMonthlyAmount" json:"totalMonthlyAmount"`
	TotalDeposit       float64      `bson:"totalDeposit" json:"totalDeposit"`
	Status             RentalStatus `bson:"status" json:"status"`
	LastReminderSentAt *time.Time   `bson:"lastReminderSentAt" json:"lastReminderSentAt"`
	CreatedAt          time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// RentalInput is what the admin layer submits when a rental is created.
type RentalInput struct {
	Customer  Customer     `json:"customer" binding:"required"`
	Items     []RentalItem `json:"items" binding:"required,min=1"`
	StartDate time.Time    `json:"startDate"`
	EndDate   *time.Time   `json:"endDate,omitempty"`
}
