package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelflow_generations_total",
			Help: "Bulk generation calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labelflow_generation_duration_seconds",
			Help:    "Duration of model completion calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"provider"},
	)

	CSVImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelflow_csv_imports_total",
			Help: "CSV imports by outcome",
		},
		[]string{"outcome"},
	)

	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelflow_commits_total",
			Help: "Fan-out commits by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	RecordsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelflow_records_planned_total",
			Help: "Task records produced by fan-out plans",
		},
		[]string{"mode"},
	)

	AssignmentsExpanded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "labelflow_assignments_expanded_total",
			Help: "Concrete per-worker tasks created from broadcast records",
		},
	)

	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "labelflow_sessions_open",
			Help: "Number of open draft sessions",
		},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
