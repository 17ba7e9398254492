package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteCommandDuration tracks how long remote commands take.
	// transport is "ssh" or "local"; outcome is one of the error kinds or "ok".
	RemoteCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxd_remote_command_duration_seconds",
			Help:    "Duration of commands executed on managed servers in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"transport", "outcome"},
	)

	RemoteCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxd_remote_commands_total",
			Help: "Total number of commands executed on managed servers by outcome",
		},
		[]string{"transport", "outcome"},
	)

	// DeploymentRunsTotal counts finished deployment runs by status.
	DeploymentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxd_deployment_runs_total",
			Help: "Total number of finished deployment runs by status",
		},
		[]string{"status"},
	)

	DeploymentStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxd_deployment_step_duration_seconds",
			Help:    "Duration of individual deployment steps in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"step", "status"},
	)

	// ContainerOpsTotal counts container lifecycle operations served by the
	// daemon. result is "success" or "error".
	ContainerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxd_container_ops_total",
			Help: "Total number of container lifecycle operations by operation and result",
		},
		[]string{"op", "result"},
	)

	// DeploymentConflictsTotal counts deployments rejected because another
	// run for the same project was still in flight.
	DeploymentConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxd_deployment_conflicts_total",
			Help: "Total number of deployments rejected due to a concurrent run",
		},
	)
)

func Result(success bool) string {
	if success {
		return "success"
	}

	return "error"
}
