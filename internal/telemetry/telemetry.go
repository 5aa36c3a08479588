// Package telemetry exposes local sync metrics through Prometheus collectors.
// Nothing is pushed anywhere; collectors are only read by whoever scrapes the
// registry they were registered on.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "menuscan"

// Delivery outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"  // non-2xx response
	OutcomeTransport = "transport" // network error
	OutcomeMalformed = "malformed"
)

// Drain pass results.
const (
	PassCompleted = "completed"
	PassOffline   = "offline"
	PassEmpty     = "empty"
	PassCoalesced = "coalesced"
)

// Metrics holds the sync collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	deliveries    *prometheus.CounterVec
	drainPasses   *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	maxRetryCount prometheus.Gauge
	online        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "deliveries_total",
			Help:      "Pending upload delivery attempts by outcome.",
		}, []string{"outcome"}),
		drainPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "drain_passes_total",
			Help:      "Drain triggers by result.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Pending uploads after the last drain pass.",
		}),
		maxRetryCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "max_retry_count",
			Help:      "Highest retry count among pending uploads after the last drain pass.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "online",
			Help:      "1 when the server was last known reachable, 0 otherwise.",
		}),
	}
	reg.MustRegister(m.deliveries, m.drainPasses, m.queueDepth, m.maxRetryCount, m.online)
	return m
}

// ObserveDelivery counts one delivery attempt.
func (m *Metrics) ObserveDelivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// ObservePass counts one drain trigger.
func (m *Metrics) ObservePass(result string) {
	if m == nil {
		return
	}
	m.drainPasses.WithLabelValues(result).Inc()
}

// SetQueue records the queue depth and highest retry count.
func (m *Metrics) SetQueue(depth, maxRetry int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
	m.maxRetryCount.Set(float64(maxRetry))
}

// SetOnline records the connectivity state.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
	} else {
		m.online.Set(0)
	}
}
