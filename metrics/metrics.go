// SPDX-License-Identifier: GPL-3.0-only

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whoistel_lookups_total",
		Help: "Total number of lookups by outcome (found, not_found, invalid, error)",
	}, []string{"outcome"})
	LookupDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "whoistel_lookup_duration_ms",
		Help:    "Lookup duration in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whoistel_cache_hits_total",
		Help: "Total lookup cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whoistel_cache_misses_total",
		Help: "Total lookup cache misses",
	})
	CacheErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "whoistel_cache_errors_total",
		Help: "Total lookup cache failures",
	})
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whoistel_reports_total",
		Help: "Total community reports stored, by kind (spam, comment)",
	}, []string{"kind"})
	ReportEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whoistel_report_events_total",
		Help: "Report events published to the broker, by status",
	}, []string{"status"})
	SnapshotReloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whoistel_snapshot_reloads_total",
		Help: "Snapshot reload attempts by status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(LookupsTotal)
	prometheus.MustRegister(LookupDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheErrorsTotal)
	prometheus.MustRegister(ReportsTotal)
	prometheus.MustRegister(ReportEventsTotal)
	prometheus.MustRegister(SnapshotReloadsTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
