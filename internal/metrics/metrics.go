// Package metrics declares the Prometheus collectors exported by the sync daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsync",
		Name:      "sync_runs_total",
		Help:      "Completed sync pipelines by target playlist and outcome.",
	}, []string{"playlist", "outcome"})

	SyncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nsync",
		Name:      "sync_duration_seconds",
		Help:      "Time from trigger to completion of a sync pipeline.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"playlist"})

	SyncsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nsync",
		Name:      "syncs_in_flight",
		Help:      "Number of jobs with a pipeline in flight.",
	})

	ReconcileEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsync",
		Name:      "reconcile_entries_total",
		Help:      "Playlist entries changed by reconciliation, by action (added, removed).",
	}, []string{"action"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nsync",
		Name:      "client_request_duration_seconds",
		Help:      "Duration of requests to playlist servers by method and status code.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
	}, []string{"method", "code"})

	ArtworkLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nsync",
		Name:      "artwork_lookups_total",
		Help:      "Artwork lookups by the tier that answered them (instance, cache, negative, fetch, failed, cancelled).",
	}, []string{"result"})

	ArtworkCacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nsync",
		Name:      "artwork_cache_entries",
		Help:      "Entries held by the artwork caches (positive, negative).",
	}, []string{"cache"})
)

// Outcome labels for [SyncRunsTotal].
const (
	OutcomeOK       = "ok"
	OutcomeNoChange = "no_change"
	OutcomeError    = "error"
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SyncRunsTotal,
		SyncDuration,
		SyncsInFlight,
		ReconcileEntriesTotal,
		HTTPRequestDuration,
		ArtworkLookupsTotal,
		ArtworkCacheEntries,
	)
}
