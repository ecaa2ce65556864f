package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	// queueDepth gauges jobs accepted but not yet picked up by a worker.
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Dispatch jobs waiting for a worker.",
		},
		[]string{"driver"},
	)

	// jobsHandled counts processed jobs by backend and result (ok|error|malformed).
	jobsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_handled_total",
			Help: "Dispatch jobs processed by queue workers.",
		},
		[]string{"driver", "result"},
	)
)

func init() {
	prometheus.MustRegister(queueDepth, jobsHandled)
}
