// Package metrics provides Prometheus metrics for the assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the organize flow.
type Metrics struct {
	// Remote calls
	RemoteCallsTotal   *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec

	// Organize flow
	FallbackActivationsTotal prometheus.Counter
	AutoSavesTotal           *prometheus.CounterVec
	StaleResultsTotal        *prometheus.CounterVec

	// Streaming
	StreamChunksTotal     prometheus.Counter
	CancelledStreamsTotal prometheus.Counter

	// Sessions
	SessionsActive prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RemoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexter_remote_calls_total",
				Help: "Total number of calls to the AI services",
			},
			[]string{"phase", "status"},
		),
		RemoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexter_remote_call_duration_seconds",
				Help:    "Duration of calls to the AI services in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		FallbackActivationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexter_fallback_activations_total",
				Help: "Number of organize flows that fell back to the local script",
			},
		),
		AutoSavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexter_autosaves_total",
				Help: "Number of organize completions saved",
			},
			[]string{"mode", "status"},
		),
		StaleResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexter_stale_results_discarded_total",
				Help: "Number of remote results discarded because the selected project changed",
			},
			[]string{"operation"},
		),
		StreamChunksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexter_stream_chunks_total",
				Help: "Number of streamed chat chunks applied",
			},
		),
		CancelledStreamsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nexter_chat_streams_cancelled_total",
				Help: "Number of chat streams abandoned because the caller went away",
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nexter_sessions_active",
				Help: "Number of chat sessions held in memory",
			},
		),
	}
}

// ObserveRemoteCall records one remote call.
func (m *Metrics) ObserveRemoteCall(phase string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RemoteCallsTotal.WithLabelValues(phase, status).Inc()
	m.RemoteCallDuration.WithLabelValues(phase).Observe(seconds)
}
