package handlers

import (
	"errors"
	"net/http"
	"time"

	"rentflow/services/ledger"
	"rentflow/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps ledger errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var (
		vErr  *ledger.ValidationError
		nfErr *ledger.NotFoundError
		isErr *ledger.InvalidStateError
		cdErr *ledger.CooldownError
		ccErr *ledger.ConcurrencyError
	)
	switch {
	case errors.As(err, &vErr):
		utils.JSONErrorWithMeta(c, http.StatusBadRequest, "validation failed", vErr.Message, map[string]any{"field": vErr.Field})
	case errors.As(err, &nfErr):
		utils.JSONError(c, http.StatusNotFound, "not found", nfErr.Error())
	case errors.As(err, &isErr):
		utils.JSONError(c, http.StatusConflict, "invalid state", isErr.Reason)
	case errors.As(err, &cdErr):
		utils.JSONErrorWithMeta(c, http.StatusTooManyRequests, "reminder cooldown", cdErr.Error(), map[string]any{
			"hoursRemaining":   cdErr.HoursRemaining,
			"minutesRemaining": cdErr.MinutesRemaining,
			"canSendAfter":     cdErr.CanSendAfter.Format(time.RFC3339),
		})
	case errors.As(err, &ccErr):
		utils.JSONError(c, http.StatusConflict, "concurrent modification", ccErr.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
