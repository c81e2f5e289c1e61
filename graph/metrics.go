package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine execution metrics to Prometheus.
//
// All metrics are namespaced "agent_workflow_":
//   - runs_total (counter): finished runs by graph and outcome
//     (ok | node_error | recursion_limit | routing_error | schema_error).
//   - steps_total (counter): node applications by graph and node.
//   - step_duration_seconds (histogram): node execution latency by node
//     and status (success | error).
//   - checkpoint_writes_total (counter): checkpoints persisted by graph.
//
// Create one Metrics per registry and share it across executors; label
// cardinality stays bounded because graphs and nodes are static.
type Metrics struct {
	runs             *prometheus.CounterVec
	steps            *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	checkpointWrites *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with the given registerer.
// Pass prometheus.DefaultRegisterer for the process-global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_workflow",
			Name:      "runs_total",
			Help:      "Finished workflow runs by graph and outcome.",
		}, []string{"graph", "outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_workflow",
			Name:      "steps_total",
			Help:      "Node applications by graph and node.",
		}, []string{"graph", "node"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agent_workflow",
			Name:      "step_duration_seconds",
			Help:      "Node execution latency.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"node", "status"}),
		checkpointWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agent_workflow",
			Name:      "checkpoint_writes_total",
			Help:      "Checkpoints persisted by graph.",
		}, []string{"graph"}),
	}
}

func (m *Metrics) observeRun(graph, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(graph, outcome).Inc()
}

func (m *Metrics) observeStep(graph, node string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(graph, node).Inc()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stepDuration.WithLabelValues(node, status).Observe(d.Seconds())
}

func (m *Metrics) observeCheckpoint(graph string) {
	if m == nil {
		return
	}
	m.checkpointWrites.WithLabelValues(graph).Inc()
}
