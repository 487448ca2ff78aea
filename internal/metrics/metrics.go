// Package metrics holds the Prometheus collectors for the scheduling
// engine. Collectors are registered on the default registry; the API
// process serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SlotReservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaccicare_slot_reservations_total",
		Help: "Slot reserve/release attempts by outcome.",
	}, []string{"op", "outcome"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaccicare_appointment_transitions_total",
		Help: "Appointment state machine transitions by action and outcome.",
	}, []string{"action", "outcome"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaccicare_outbox_events_total",
		Help: "Outbox relay publish attempts by outcome.",
	}, []string{"outcome"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaccicare_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)
