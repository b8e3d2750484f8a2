// Package metrics provides Prometheus metrics for the repodesk client.
//
// All recording methods are safe to call on a nil *Metrics, so components can
// be constructed without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	RefreshesTotal      *prometheus.CounterVec
	ReconnectsTotal     prometheus.Counter
	RealtimeEventsTotal *prometheus.CounterVec
	RealtimeState       prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodesk_http_requests_total",
				Help: "Backend requests by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repodesk_http_request_duration_seconds",
				Help:    "Backend request duration by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodesk_token_refreshes_total",
				Help: "Access token refresh attempts by result.",
			},
			[]string{"result"},
		),
		ReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "repodesk_realtime_reconnects_total",
				Help: "Push channel reconnect attempts.",
			},
		),
		RealtimeEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repodesk_realtime_events_total",
				Help: "Push events received by type and result.",
			},
			[]string{"type", "result"},
		),
		RealtimeState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "repodesk_realtime_state",
				Help: "Push channel state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.RefreshesTotal)
	reg.MustRegister(m.ReconnectsTotal)
	reg.MustRegister(m.RealtimeEventsTotal)
	reg.MustRegister(m.RealtimeState)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one finished backend call and its duration.
func (m *Metrics) RecordRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordRefresh counts a refresh attempt: "ok", "failed" or "missing".
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshesTotal.WithLabelValues(result).Inc()
}

// RecordReconnect counts a scheduled reconnect.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// RecordEvent counts a push event: "applied", "ignored" or "invalid".
func (m *Metrics) RecordEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.RealtimeEventsTotal.WithLabelValues(eventType, result).Inc()
}

// SetRealtimeState records the channel state as its numeric value.
func (m *Metrics) SetRealtimeState(state int) {
	if m == nil {
		return
	}
	m.RealtimeState.Set(float64(state))
}
