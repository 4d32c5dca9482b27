package routes

import (
	"net/http"
	"time"

	"rentflow/handlers"
	"rentflow/middleware"
	"rentflow/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterLedgerRoutes registers the admin-only ledger endpoints.
func RegisterLedgerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/ledger")
	api.Use(middleware.JWTAuthAdminMiddleware(hb.JWTSecret))
	{
		api.POST("/rentals", hb.CreateRental)
		api.GET("/rentals", hb.ListRentals)
		api.GET("/rentals/:id", hb.GetRental)
		api.POST("/rentals/:id/schedule", hb.GenerateSchedule)
		api.POST("/rentals/:id/obligations", hb.AddObligation)
		api.POST("/rentals/:id/reminders", hb.SendReminder)
		api.GET("/rentals/:id/invoices", hb.ListInvoices)
		api.DELETE("/obligations/:id", hb.DeleteObligation)

		api.POST("/payments", hb.RecordPayment)
		api.POST("/payments/:eventId/invoice", hb.IssueInvoice)
		api.GET("/invoices/:id", hb.GetInvoice)

		api.POST("/sweep", hb.RunSweep)
		api.GET("/dues", hb.Dues)
		api.GET("/collections", hb.Collections)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	health := hb.Health
	if health == nil {
		health = func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		}
	}
	r.GET("/health", health)
}

// RegisterMetricsRoute exposes Prometheus metrics.
func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes registers all routes on the router.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(utils.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(hb.MaxRequestsPerMin))

	RegisterHealthRoute(r, hb)
	RegisterMetricsRoute(r)
	RegisterLedgerRoutes(r, hb)
}
