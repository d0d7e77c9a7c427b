// Package metrics exposes the Prometheus registry shared by the pickup client.
// Collectors are defined next to the code they measure (cache, controller,
// cart, notify) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto collectors land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics
//
// Cache store (pkg/cache):
//   - pickup_cache_hits_total / pickup_cache_misses_total (Counter)
//   - pickup_cache_writes_total (Counter)
//   - pickup_cache_size_bytes (Gauge)
//   - pickup_cache_errors_total{operation} (Counter)
//
// Controller (pkg/controller):
//   - pickup_route_requests_total{class} (Counter)
//   - pickup_route_responses_total{class, source} (Counter): source is cache, network or shell
//   - pickup_network_errors_total{class} (Counter)
//   - pickup_cache_skips_total{reason} (Counter): status or opaque
//   - pickup_precache_assets_total{result} (Counter)
//   - pickup_caches_deleted_total (Counter)
//
// Cart (pkg/cart):
//   - pickup_cart_operations_total{operation, result} (Counter)
//   - pickup_checkout_failures_total{step} (Counter)
//   - pickup_checkout_amount (Histogram)
//   - pickup_outbox_pending (Gauge)
//   - pickup_remote_retries_total{operation} (Counter)
//   - pickup_drafts_discarded_total (Counter)
//
// Notifications (pkg/notify):
//   - pickup_notify_published_total / pickup_notify_delivered_total (Counter)
//   - pickup_notify_decode_errors_total (Counter)
//   - pickup_notify_subscriptions (Gauge)
//
// Example queries:
//
//   # Share of static assets served from cache
//   sum(rate(pickup_route_responses_total{class="static",source="cache"}[5m])) /
//   sum(rate(pickup_route_responses_total{class="static"}[5m]))
//
//   # Checkouts stuck waiting for cart cleanup
//   pickup_outbox_pending > 0
