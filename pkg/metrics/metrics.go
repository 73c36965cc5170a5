// Package metrics provides Prometheus metrics for the sync service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks total sync run cycles by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync run cycles by status",
		},
		[]string{"status"},
	)

	// RunDuration tracks full run cycle duration in seconds
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "siasn",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync run cycles in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// RecordsFetched tracks records pulled per bulk fetch
	RecordsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "fetch",
			Name:      "records_total",
			Help:      "Total number of monitoring records fetched",
		},
	)

	// PagesFetched tracks bulk fetch pages by status
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "fetch",
			Name:      "pages_total",
			Help:      "Total number of bulk fetch pages by status",
		},
		[]string{"status"},
	)

	// GapLookupsTotal tracks gap-fill point lookups by outcome
	GapLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "reconcile",
			Name:      "gap_lookups_total",
			Help:      "Total number of gap-fill point lookups by outcome",
		},
		[]string{"outcome"},
	)

	// RecordsMerged tracks records merged back into the bulk store
	RecordsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "reconcile",
			Name:      "records_merged_total",
			Help:      "Total number of gap-fill records merged into the bulk store",
		},
	)

	// DocumentsProcessed tracks document pool tasks by status
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "documents",
			Name:      "processed_total",
			Help:      "Total number of document download tasks by status",
		},
		[]string{"kind", "status"},
	)

	// DocumentsInFlight tracks document tasks currently being processed
	DocumentsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siasn",
			Subsystem: "documents",
			Name:      "in_flight",
			Help:      "Number of document tasks currently being processed",
		},
	)

	// DriveUploadsTotal tracks archive uploads by status
	DriveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "drive",
			Name:      "uploads_total",
			Help:      "Total number of Drive archive uploads by status",
		},
		[]string{"status"},
	)

	// LoginsTotal tracks SSO login attempts by outcome
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siasn",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Total number of SSO login attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordRun records a completed run cycle metric
func RecordRun(status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordGapLookup records a gap-fill point lookup outcome
func RecordGapLookup(outcome string) {
	GapLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordDocument records a document task outcome
func RecordDocument(kind, status string) {
	DocumentsProcessed.WithLabelValues(kind, status).Inc()
}
