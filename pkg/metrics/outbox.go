package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded by the outbox relay.
const (
	OutcomeDelivered  = "delivered"
	OutcomeRetry      = "retry"
	OutcomeDeadLetter = "dead_letter"
)

type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	cycle      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox rows handled by the relay, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		cycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent on one relay batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
	reg.MustRegister(m.deliveries, m.cycle)
	return m
}

func (m *OutboxMetrics) Record(eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) ObserveCycle(d time.Duration) {
	if m == nil || m.cycle == nil {
		return
	}
	m.cycle.Observe(d.Seconds())
}
