package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts lookups served from an existing pool.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathq_cache_hits_total",
			Help: "Total number of expression cache hits",
		},
		[]string{"cache"},
	)

	// cacheMisses counts lookups that created a new pool.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathq_cache_misses_total",
			Help: "Total number of expression cache misses",
		},
		[]string{"cache"},
	)

	// cacheEvictions counts pools destroyed by LRU capacity pressure.
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathq_cache_evictions_total",
			Help: "Total number of expression pools evicted by capacity",
		},
		[]string{"cache"},
	)

	// cacheStale counts pools replaced because a newer validity stamp
	// was presented.
	cacheStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathq_cache_stale_total",
			Help: "Total number of expression pools replaced as stale",
		},
		[]string{"cache"},
	)

	// cachePools tracks the current number of cached pools.
	cachePools = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathq_cache_pools",
			Help: "Current number of cached expression pools",
		},
		[]string{"cache"},
	)
)
