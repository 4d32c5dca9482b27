package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentflow_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ObligationsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentflow_obligations_generated_total",
		Help: "Payment obligations created by schedule generation",
	})

	ObligationsMarkedOverdue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentflow_obligations_marked_overdue_total",
		Help: "Pending obligations moved to overdue by the daily sweep",
	})

	SweepRentalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentflow_sweep_rental_failures_total",
		Help: "Rentals the daily sweep failed to evaluate",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rentflow_sweep_duration_seconds",
		Help:    "Duration of the daily status sweep",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentflow_reminders_sent_total",
			Help: "Reminders accepted by the cooldown gate",
		},
		[]string{"trigger", "template"},
	)

	RemindersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentflow_reminders_rejected_total",
			Help: "Reminders rejected by the gate",
		},
		[]string{"trigger", "reason"},
	)

	PaymentsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentflow_payments_recorded_total",
			Help: "Payments applied to obligations",
		},
		[]string{"result"},
	)

	InvoicesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentflow_invoices_issued_total",
		Help: "Invoices created",
	})

	ChannelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentflow_channel_failures_total",
			Help: "Failed notification, render or storage side effects",
		},
		[]string{"channel"},
	)
)
