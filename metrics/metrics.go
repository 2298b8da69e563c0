package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sectormap_mutations_total",
		Help: "Sector mutations by operation and outcome",
	}, []string{"op", "outcome"})
	MutationDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sectormap_mutation_duration_ms",
		Help:    "Mutation transaction duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"op"})
	AuditEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sectormap_audit_entries_total",
		Help: "Committed change history entries by action",
	}, []string{"action"})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sectormap_cache_hits_total",
		Help: "Feature cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sectormap_cache_misses_total",
		Help: "Feature cache misses",
	})
)

// 变更结果
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

func init() {
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(MutationDurationMs)
	prometheus.MustRegister(AuditEntriesTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
