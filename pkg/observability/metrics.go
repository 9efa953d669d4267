// Package observability exposes Prometheus metrics and health probes
// for the relay over a small HTTP server.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_inbound_messages_total",
			Help: "Total number of inbound messages by content kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_generation_duration_seconds",
			Help:    "Reply generation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	functionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_function_calls_total",
			Help: "Total number of model-issued function calls",
		},
		[]string{"function", "status"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_rate_limited_total",
			Help: "Total number of messages rejected by the per-chat quota",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)

	evictedSessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_evicted_sessions_total",
			Help: "Total number of sessions removed by idle eviction",
		},
	)

	outboundSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_outbound_sends_total",
			Help: "Total number of outbound transport sends",
		},
		[]string{"transport", "status"},
	)

	initOnce sync.Once
)

// InitMetrics registers the relay metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			inboundMessagesTotal,
			generationDuration,
			functionCallsTotal,
			rateLimitedTotal,
			activeSessions,
			evictedSessionsTotal,
			outboundSendsTotal,
		)
	})
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordInbound records one handled inbound message.
func RecordInbound(kind, outcome string) {
	inboundMessagesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveGeneration records one reply-generation round trip.
func ObserveGeneration(provider string, duration time.Duration) {
	generationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordFunctionCall records one resolved function call.
func RecordFunctionCall(function, status string) {
	functionCallsTotal.WithLabelValues(function, status).Inc()
}

// RecordRateLimited counts a quota rejection.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordEvictions counts idle-evicted sessions.
func RecordEvictions(count int) {
	evictedSessionsTotal.Add(float64(count))
}

// RecordOutboundSend records one transport send attempt.
func RecordOutboundSend(transport, status string) {
	outboundSendsTotal.WithLabelValues(transport, status).Inc()
}
