package models

import "time"

// Invoice is the numbered document issued for one settling payment event.
type Invoice struct {
	ID             string     `bson:"id" json:"id"`
	Number         string     `bson:"number" json:"number"` // PREFIX-YYYY-MMDD-NNNN
	PaymentEventID string     `bson:"paymentEventId" json:"paymentEventId"`
	ObligationID   string     `bson:"obligationId" json:"obligationId"`
	RentalID       string     `bson:"rentalId" json:"rentalId"`
	OwnerRef       string     `bson:"ownerRef" json:"ownerRef"`
	Customer       Customer   `bson:"customer" json:"customer"`
	MonthKey       string     `bson:"monthKey" json:"monthKey"`
	Amount         float64    `bson:"amount" json:"amount"`
	PaymentMethod  string     `bson:"paymentMethod" json:"paymentMethod"`
	GeneratedAt    time.Time  `bson:"generatedAt" json:"generatedAt"`
	// Delivered means the invoice notification was accepted by the channel
	// queue. Per-transport outcomes are recorded by the worker's logs.
	Delivered      bool       `bson:"delivered" json:"delivered"`
	DeliveredAt    *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	ArtifactRef    string     `bson:"artifactRef,omitempty" json:"artifactRef,omitempty"`
}

// InvoiceDocument is the render input handed to the document renderer.
type InvoiceDocument struct {
	Number        string
	IssuedAt      time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	RentalID      string
	MonthKey      string
	DueDate       time.Time
	PaidDate      time.Time
	Amount        float64
	PaymentMethod string
	Items         []RentalItem
}
