package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	activeItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fam_runner_active_items",
			Help: "Number of work items currently holding a worker slot.",
		},
	)

	queuedItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fam_runner_queued_items",
			Help: "Number of submitted work items waiting for a worker slot.",
		},
	)

	panickedItems = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fam_runner_panicked_items_total",
			Help: "Total number of work items that panicked.",
		},
	)
)

func init() {
	prometheus.MustRegister(activeItems)
	prometheus.MustRegister(queuedItems)
	prometheus.MustRegister(panickedItems)
}
