// Package metrics defines Prometheus metrics for the passport pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "passport_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "passport_pipeline_stage_duration_seconds",
			Help: "Duration of each passport pipeline stage",
			// Rendering dominates; buckets reach past the 45s render timeout.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage", "outcome"},
	)

	PipelineResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passport_pipeline_results_total",
			Help: "Passport creations by final outcome",
		},
		[]string{"outcome"},
	)

	AuditEventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Audit events recorded, by action type and outcome",
		},
		[]string{"action", "outcome"},
	)

	RenderSlotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_slots_in_use",
			Help: "Render slots currently held by this process",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration,
		StageDuration, PipelineResults,
		AuditEventsRecorded, RenderSlotsInUse,
	)
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
