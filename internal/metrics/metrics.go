package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "bookings_total",
			Help:      "Booking lifecycle transitions by resulting status.",
		},
		[]string{"status"},
	)

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "transactions_total",
			Help:      "Ledger transactions by type.",
		},
		[]string{"type"},
	)

	capacityRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "capacity_rejections_total",
			Help:      "Capacity adjustments rejected for being out of bounds.",
		},
	)

	balanceRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "balance_rejections_total",
			Help:      "Wallet charges rejected for insufficient balance.",
		},
	)

	replays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "idempotent_replays_total",
			Help:      "Requests answered from a stored outcome by operation.",
		},
		[]string{"operation"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gout",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookings,
			transactions,
			capacityRejections,
			balanceRejections,
			replays,
			httpRequests,
		)
	})
}

// IncBooking increments the booking counter for a status label.
func IncBooking(status string) {
	bookings.WithLabelValues(status).Inc()
}

// IncTransaction increments the ledger counter for a type label.
func IncTransaction(txType string) {
	transactions.WithLabelValues(txType).Inc()
}

// IncCapacityRejection counts an out-of-bounds capacity adjustment.
func IncCapacityRejection() {
	capacityRejections.Inc()
}

// IncBalanceRejection counts an insufficient-balance rejection.
func IncBalanceRejection() {
	balanceRejections.Inc()
}

// IncReplay counts an idempotent replay for an operation label.
func IncReplay(operation string) {
	replays.WithLabelValues(operation).Inc()
}

// IncHTTP increments the request counter for endpoint and status.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}
