package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_notify_published_total",
		Help: "Changes published by transport and table",
	}, []string{"transport", "table"})

	deliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_notify_delivered_total",
		Help: "Changes delivered to subscribers by transport and table",
	}, []string{"transport", "table"})

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_notify_decode_errors_total",
		Help: "Messages that could not be decoded into a change",
	}, []string{"transport"})

	activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pickup_notify_subscriptions",
		Help: "Open subscriptions by transport",
	}, []string{"transport"})
)
