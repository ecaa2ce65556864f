package fanout

import "github.com/prometheus/client_golang/prometheus"

var (
	// fanoutJobs counts fan-outs by result (ok|partial|integrity_error|error).
	fanoutJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_jobs_total",
			Help: "Message fan-outs by result.",
		},
		[]string{"result"},
	)

	// notificationsCreated counts notification inserts (created|exists|error).
	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notification insert attempts by result.",
		},
		[]string{"result"},
	)

	// fanoutLat records the wall time of a whole fan-out.
	fanoutLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_duration_seconds",
			Help:    "Duration of message fan-out in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(fanoutJobs, notificationsCreated, fanoutLat)
}
