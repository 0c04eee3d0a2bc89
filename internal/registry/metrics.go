package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/fam/internal/model"
)

var (
	registeredTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fam_registry_tasks",
			Help: "Number of tasks currently held by the registry.",
		},
	)

	tasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fam_registry_tasks_created_total",
			Help: "Total number of tasks created.",
		},
	)

	tasksPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fam_registry_tasks_purged_total",
			Help: "Total number of tasks removed from the registry, by reason.",
		},
		[]string{"reason"},
	)

	releaseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fam_registry_release_errors_total",
			Help: "Total number of task resource releases that returned an error.",
		},
	)
)

func init() {
	prometheus.MustRegister(registeredTasks)
	prometheus.MustRegister(tasksCreated)
	prometheus.MustRegister(tasksPurged)
	prometheus.MustRegister(releaseErrors)

	for _, reason := range []string{model.PurgeReasonComplete, model.PurgeReasonRunnerIdle, model.PurgeReasonShutdown} {
		tasksPurged.WithLabelValues(reason)
	}
}
