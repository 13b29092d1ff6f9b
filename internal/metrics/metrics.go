// Package metrics declares the process-wide Prometheus collectors for both
// binaries: per-replica outcome counters, per-error-kind terminal counters,
// operation latency, and the httpfrontend startup/shutdown error counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReplicaOutcomes counts one observation per replica attempt, labeled by
	// outcome: "transport_error", or the replica's ServerErrorCode name
	// ("No_Error", "Blob_Not_Found", ...) for a decoded response.
	ReplicaOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "coordinator",
		Name:      "replica_outcomes_total",
	}, []string{"outcome"})

	// OperationErrors counts terminal operation failures by ErrorKind.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "coordinator",
		Name:      "operation_errors_total",
	}, []string{"kind"})

	// OperationLatencySeconds observes end-to-end Get operation latency.
	OperationLatencySeconds = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Subsystem: "coordinator",
		Name:      "operation_latency_seconds",
	}, []string{"op"})

	// StartupErrors counts failures bringing the HTTP ingress up.
	StartupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "httpfrontend",
		Name:      "startup_errors_total",
	})

	// ShutdownErrors counts failures during graceful shutdown.
	ShutdownErrors = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "httpfrontend",
		Name:      "shutdown_errors_total",
	})
)
