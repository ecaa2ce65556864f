package push

import "github.com/prometheus/client_golang/prometheus"

var (
	// deliveries counts endpoint attempts by final outcome.
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Web Push delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// deliveryLat records time spent per endpoint, retries included.
	deliveryLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_delivery_duration_seconds",
			Help:    "Duration of Web Push delivery per endpoint in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(deliveries, deliveryLat)
}
