package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the store.
type Metrics struct {
	StoreWrites         *prometheus.CounterVec
	BookingsTotal       *prometheus.CounterVec
	BookingFare         prometheus.Histogram
	SubscriptionsActive prometheus.Gauge
	MigrationsApplied   prometheus.Counter
	Errors              *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_writes_total",
				Help:      "Total committed write operations by table.",
			}, []string{"table"}),
			BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_total",
				Help:      "Total booking attempts by outcome.",
			}, []string{"outcome"}),
			BookingFare: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "booking_fare_amount",
				Help:      "Distribution of fares charged for successful bookings.",
				Buckets:   []float64{20, 50, 100, 200, 500, 1000},
			}),
			SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscriptions_active",
				Help:      "Number of live query subscriptions currently open.",
			}),
			MigrationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_applied_total",
				Help:      "Total schema migration steps applied since process start.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.StoreWrites,
			metricsInstance.BookingsTotal,
			metricsInstance.BookingFare,
			metricsInstance.SubscriptionsActive,
			metricsInstance.MigrationsApplied,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
