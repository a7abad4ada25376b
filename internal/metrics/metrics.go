// Package metrics holds the portal's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests served by the portal",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Duration of portal HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	AutosaveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_autosave_total",
			Help: "Auto-save attempts by result (saved, failed)",
		},
		[]string{"result"},
	)

	SubmissionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_submissions_total",
			Help: "Exam submissions by trigger (manual, auto) and result (ok, failed)",
		},
		[]string{"trigger", "result"},
	)

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_active_exam_sessions",
		Help: "Exam sessions currently open",
	})

	StreamConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_session_stream_connections",
		Help: "Open session event WebSocket connections",
	})

	once sync.Once
)

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AutosaveTotal,
			SubmissionTotal,
			ActiveSessions,
			StreamConnections,
		)
	})
}
