package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for controller operations.
var (
	routeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_route_requests_total",
		Help: "Requests seen by the controller by route class",
	}, []string{"class"})

	routeResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_route_responses_total",
		Help: "Responses served by route class and source",
	}, []string{"class", "source"}) // source: network, cache, shell, unavailable

	networkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_network_errors_total",
		Help: "Network fetch failures by route class",
	}, []string{"class"})

	cacheSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_cache_skips_total",
		Help: "Responses returned but not written to cache",
	}, []string{"reason"}) // reason: status, opaque

	precacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_precache_assets_total",
		Help: "Shell assets processed during install by result",
	}, []string{"result"}) // result: cached, failed

	cachesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_caches_deleted_total",
		Help: "Stale cache versions deleted during activation",
	})
)
