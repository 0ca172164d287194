package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking related metrics
	BookingsTotal    *prometheus.CounterVec
	ReserveConflicts prometheus.Counter
	SlotsPublished   prometheus.Counter

	// Lifecycle metrics
	StatusTransitions *prometheus.CounterVec

	// Fallback metrics
	FallbackSpooled   prometheus.Counter
	ReconcileOutcomes *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics against the
// given registerer. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		ReserveConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reserve_conflicts_total",
			Help:      "Reservations rejected because the slot was no longer free",
		}),
		SlotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_published_total",
			Help:      "Availability slots published by doctors",
		}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Consultation status transitions by target status",
		}, []string{"status"}),
		FallbackSpooled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_bookings_spooled_total",
			Help:      "Bookings accepted provisionally while the store was unavailable",
		}),
		ReconcileOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_reconcile_outcomes_total",
			Help:      "Outcomes of fallback booking reconciliation",
		}, []string{"outcome"}),
	}
}
