// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntryTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logbook_entry_transitions_total",
			Help: "Total number of logbook entry status transitions",
		},
		[]string{"from", "to"},
	)

	SupervisorLinkAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_link_attempts_total",
			Help: "Supervisor linking attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EvaluationGradeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evaluation_grade",
			Help:    "Distribution of final evaluation grades",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_active_sessions",
			Help: "Sessions issued minus sessions revoked since start",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	SheetExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheet_exports_total",
			Help: "Logbook pushes to Google Sheets by outcome",
		},
		[]string{"outcome"},
	)
)

// Transition records an entry moving between statuses. New entries come from "".
func Transition(from, to string) {
	if from == "" {
		from = "none"
	}
	EntryTransitionsTotal.WithLabelValues(from, to).Inc()
}
