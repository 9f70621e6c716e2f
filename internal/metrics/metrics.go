// Package metrics exposes relay counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	framesTotal    *prometheus.CounterVec
	droppedTotal   prometheus.Counter
	rateLimited    prometheus.Counter
	connections    prometheus.Gauge
	membersWaiting prometheus.Gauge
	membersActive  prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	framesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meet_relay_frames_total",
		Help: "Frames received from clients, by verb",
	}, []string{"verb"})
	droppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meet_relay_frames_dropped_total",
		Help: "Outbound frames dropped because a client could not keep up",
	})
	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meet_relay_forum_rate_limited_total",
		Help: "Chat frames rejected by the per-user rate limit",
	})
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meet_relay_connections",
		Help: "Open websocket connections",
	})
	membersWaiting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meet_relay_members_waiting",
		Help: "Registered users waiting for approval",
	})
	membersActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "meet_relay_members_active",
		Help: "Approved users",
	})

	registry.MustRegister(framesTotal, droppedTotal, rateLimited, connections, membersWaiting, membersActive)

	return &Metrics{
		registry:       registry,
		framesTotal:    framesTotal,
		droppedTotal:   droppedTotal,
		rateLimited:    rateLimited,
		connections:    connections,
		membersWaiting: membersWaiting,
		membersActive:  membersActive,
	}
}

func (m *Metrics) IncFrame(verb string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(verb).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) SetMembers(waiting, active int) {
	if m == nil {
		return
	}
	m.membersWaiting.Set(float64(waiting))
	m.membersActive.Set(float64(active))
}

// Handler serves the registry. refresh runs before each scrape to update gauges.
func (m *Metrics) Handler(refresh func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh != nil {
			refresh()
		}
		h.ServeHTTP(w, r)
	})
}
