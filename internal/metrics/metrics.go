// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts cache reads that returned a value
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "githunter_cache_hits_total",
		Help: "Number of cache reads that returned a value.",
	})

	// CacheMisses counts cache reads that returned nothing while the
	// store was available
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "githunter_cache_misses_total",
		Help: "Number of cache reads that missed.",
	})

	// CacheDegraded counts operations answered as misses because the
	// store is unavailable
	CacheDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "githunter_cache_degraded_total",
		Help: "Number of cache operations short-circuited while the store was unavailable.",
	})

	// JobsProcessed counts finished jobs by terminal status
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "githunter_jobs_processed_total",
		Help: "Number of analysis jobs finished, by terminal status.",
	}, []string{"status"})

	// EnrichmentSkipped counts repositories dropped from aggregate counts
	// because a commit or pull fetch failed
	EnrichmentSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "githunter_enrichment_skipped_total",
		Help: "Number of repositories whose enrichment was skipped due to fetch failure.",
	})
)
