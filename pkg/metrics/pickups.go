package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PickupMetrics counts pickup request lifecycle events.
type PickupMetrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	assigned    prometheus.Counter
	rejected    *prometheus.CounterVec
	stale       prometheus.Gauge
}

func NewPickupMetrics(reg prometheus.Registerer) *PickupMetrics {
	if reg == nil {
		return &PickupMetrics{}
	}
	m := &PickupMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pickups",
			Name:      "created_total",
			Help:      "Pickup requests created, by material code.",
		}, []string{"material"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pickups",
			Name:      "status_transitions_total",
			Help:      "Pickup request status changes.",
		}, []string{"from", "to"}),
		assigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pickups",
			Name:      "bulk_assigned_total",
			Help:      "Requests updated by bulk assignment.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pickups",
			Name:      "policy_rejections_total",
			Help:      "Actions refused by the authorization or lifecycle policy.",
		}, []string{"action", "outcome"}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pickups",
			Name:      "stale_pending",
			Help:      "Pending requests older than the staleness threshold at the last cron cycle.",
		}),
	}
	reg.MustRegister(m.created, m.transitions, m.assigned, m.rejected, m.stale)
	return m
}

func (m *PickupMetrics) IncCreated(material string) {
	if m == nil || m.created == nil {
		return
	}
	m.created.WithLabelValues(normalizeLabel(material)).Inc()
}

func (m *PickupMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// AddAssigned adds n to the bulk assignment counter.
func (m *PickupMetrics) AddAssigned(n int) {
	if m == nil || m.assigned == nil || n <= 0 {
		return
	}
	m.assigned.Add(float64(n))
}

func (m *PickupMetrics) IncRejected(action, outcome string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

// SetStalePending records the latest stale pending count.
func (m *PickupMetrics) SetStalePending(n int64) {
	if m == nil || m.stale == nil {
		return
	}
	m.stale.Set(float64(n))
}
