package handlers

import (
	"context"
	"errors"
	"net/http"

	"rentflow/cron"
	"rentflow/models"
	"rentflow/services/ledger"
	"rentflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DailyRunner runs the sweep and scheduled reminder pass on demand.
type DailyRunner interface {
	Run(ctx context.Context) (*cron.DailyResult, error)
}

// LedgerHandler exposes the ledger engine to back-office operators.
type LedgerHandler struct {
	Service ledger.LedgerService
	Daily   DailyRunner
}

func NewLedgerHandler(svc ledger.LedgerService, daily DailyRunner) *LedgerHandler {
	return &LedgerHandler{Service: svc, Daily: daily}
}

// CreateRentalHandler creates a rental and its initial schedule.
func (h *LedgerHandler) CreateRentalHandler(c *gin.Context) {
	var input models.RentalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	rental, obligations, err := h.Service.CreateRental(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	getLogger(c).Info("rental created", zap.String("rentalId", rental.ID), zap.Int("obligations", len(obligations)))
	c.JSON(http.StatusCreated, gin.H{"rental": rental, "obligations": obligations})
}

func (h *LedgerHandler) ListRentalsHandler(c *gin.Context) {
	rentals, err := h.Service.ListRentals(c.Request.Context(), models.RentalStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rentals)
}

func (h *LedgerHandler) GetRentalHandler(c *gin.Context) {
	rental, err := h.Service.GetRental(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rental)
}

// GenerateScheduleHandler extends a rental's schedule; existing months are skipped.
func (h *LedgerHandler) GenerateScheduleHandler(c *gin.Context) {
	var input struct {
		MonthsAhead int `json:"monthsAhead" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	created, err := h.Service.GenerateSchedule(c.Request.Context(), c.Param("id"), input.MonthsAhead)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": len(created), "obligations": created})
}

func (h *LedgerHandler) AddObligationHandler(c *gin.Context) {
	var input models.ObligationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	ob, err := h.Service.AddObligation(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ob)
}

func (h *LedgerHandler) DeleteObligationHandler(c *gin.Context) {
	if err := h.Service.DeleteObligation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendReminderHandler sends a manual reminder, subject to the cooldown.
func (h *LedgerHandler) SendReminderHandler(c *gin.Context) {
	result, err := h.Service.SendReminder(c.Request.Context(), c.Param("id"), models.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LedgerHandler) RunSweepHandler(c *gin.Context) {
	result, err := h.Daily.Run(c.Request.Context())
	if errors.Is(err, cron.ErrAlreadyRunning) {
		utils.JSONError(c, http.StatusConflict, "sweep already running", err.Error())
		return
	}
	if err != nil && (result == nil || result.Sweep == nil) {
		respondError(c, err)
		return
	}
	if err != nil {
		// sweep committed, reminder pass did not
		getLogger(c).Warn("reminder pass failed after manual sweep", zap.Error(err))
	}
	c.JSON(http.StatusOK, result)
}

// RecordPaymentHandler applies a payment. Replays of a known paymentEventId
// return the original outcome with 200.
func (h *LedgerHandler) RecordPaymentHandler(c *gin.Context) {
	var input models.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	result, err := h.Service.RecordPayment(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *LedgerHandler) IssueInvoiceHandler(c *gin.Context) {
	inv, err := h.Service.IssueInvoice(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *LedgerHandler) ListInvoicesHandler(c *gin.Context) {
	invoices, err := h.Service.ListInvoices(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *LedgerHandler) GetInvoiceHandler(c *gin.Context) {
	inv, err := h.Service.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

var duesQueryKeys = map[string]bool{
	"status":         true,
	"month":          true,
	"customer_email": true,
}

// DuesHandler reports outstanding balances. Unknown query keys are rejected
// rather than ignored.
func (h *LedgerHandler) DuesHandler(c *gin.Context) {
	for key := range c.Request.URL.Query() {
		if !duesQueryKeys[key] {
			utils.JSONError(c, http.StatusBadRequest, "unknown filter", key)
			return
		}
	}
	var filter models.DuesFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}
	report, err := h.Service.DuesBreakdown(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *LedgerHandler) CollectionsHandler(c *gin.Context) {
	report, err := h.Service.MonthlyCollection(c.Request.Context(), c.Query("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
