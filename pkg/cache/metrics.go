package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by cache name
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pickup_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheWrites tracks entries written by cache name
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_cache_writes_total",
			Help: "Total number of response cache writes",
		},
		[]string{"cache"},
	)

	// CacheSize tracks bytes written per cache since the process started
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pickup_cache_size_bytes",
			Help: "Bytes written to each response cache",
		},
		[]string{"cache"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pickup_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "match", "put", "delete", "names", "delete_cache"
	)
)
