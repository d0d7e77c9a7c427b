package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cart operations.
var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_cart_operations_total",
		Help: "Cart engine operations by name and result",
	}, []string{"operation", "result"})

	checkoutFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_checkout_failures_total",
		Help: "Checkout failures by step",
	}, []string{"step"})

	checkoutAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pickup_checkout_amount",
		Help:    "Order totals at checkout",
		Buckets: []float64{50, 100, 200, 500, 1000, 2000},
	})

	outboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pickup_outbox_pending",
		Help: "Checkouts whose remote cart cleanup is still pending",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_remote_retries_total",
		Help: "Retry attempts against the remote store by operation",
	}, []string{"operation"})

	draftCorruptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_drafts_discarded_total",
		Help: "Draft records or lines discarded as unparsable",
	})
)
