package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	JWTSecret         []byte
	MaxRequestsPerMin int

	// Rentals and schedules
	CreateRental     gin.HandlerFunc
	ListRentals      gin.HandlerFunc
	GetRental        gin.HandlerFunc
	GenerateSchedule gin.HandlerFunc
	AddObligation    gin.HandlerFunc
	DeleteObligation gin.HandlerFunc

	// Reminders and the daily pass
	SendReminder gin.HandlerFunc
	RunSweep     gin.HandlerFunc

	// Payments and invoices
	RecordPayment gin.HandlerFunc
	IssueInvoice  gin.HandlerFunc
	ListInvoices  gin.HandlerFunc
	GetInvoice    gin.HandlerFunc

	// Reports
	Dues        gin.HandlerFunc
	Collections gin.HandlerFunc

	Health gin.HandlerFunc
}

// NewHandlerBundle wires a LedgerHandler into the bundle.
func NewHandlerBundle(h *LedgerHandler, health gin.HandlerFunc, jwtSecret []byte, maxRequestsPerMin int) *HandlerBundle {
	return &HandlerBundle{
		JWTSecret:         jwtSecret,
		MaxRequestsPerMin: maxRequestsPerMin,

		CreateRental:     h.CreateRentalHandler,
		ListRentals:      h.ListRentalsHandler,
		GetRental:        h.GetRentalHandler,
		GenerateSchedule: h.GenerateScheduleHandler,
		AddObligation:    h.AddObligationHandler,
		DeleteObligation: h.DeleteObligationHandler,

		SendReminder: h.SendReminderHandler,
		RunSweep:     h.RunSweepHandler,

		RecordPayment: h.RecordPaymentHandler,
		IssueInvoice:  h.IssueInvoiceHandler,
		ListInvoices:  h.ListInvoicesHandler,
		GetInvoice:    h.GetInvoiceHandler,

		Dues:        h.DuesHandler,
		Collections: h.CollectionsHandler,

		Health: health,
	}
}
