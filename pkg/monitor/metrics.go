package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the engine.
type Metrics struct {
	registry *prometheus.Registry

	Executions   *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	TaskErrors   *prometheus.CounterVec
	TriggerFires *prometheus.CounterVec
}

// NewMetrics registers the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_executions_total",
			Help: "Workflow executions by terminal status.",
		}, []string{"status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_node_duration_seconds",
			Help:    "Node executor duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node_type"}),
		TaskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_task_errors_total",
			Help: "Errors reported to the error monitor by task type.",
		}, []string{"task_type"}),
		TriggerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_trigger_fires_total",
			Help: "Trigger fires by trigger type and result.",
		}, []string{"trigger_type", "result"}),
	}

	m.registry.MustRegister(m.Executions, m.NodeDuration, m.TaskErrors, m.TriggerFires)

	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
