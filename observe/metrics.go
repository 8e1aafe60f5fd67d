package observe

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	flow "github.com/seoyhaein/flow-go"
)

// MetricsOrder places Metrics outside every default-priority callback so that its
// Finally observes the final outcome.
const MetricsOrder = -900

// Metrics records node and run outcomes as Prometheus collectors.
type Metrics struct {
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	activeNodes  prometheus.Gauge
	runs         *prometheus.CounterVec
}

var _ flow.Callback = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.  A collector
// that is already registered is reused, so several Metrics may share one
// registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		nodeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flow_node_runs_total", Help: "Total number of node executions by final state."},
			[]string{"state"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "flow_node_duration_seconds", Help: "Duration of node executions in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"node"},
		),
		activeNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "flow_active_nodes", Help: "Number of nodes currently executing."},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flow_runs_total", Help: "Total number of finished runs by outcome."},
			[]string{"outcome"},
		),
	}

	var err error
	if m.nodeRuns, err = register(reg, m.nodeRuns); err != nil {
		return nil, err
	}
	if m.nodeDuration, err = register(reg, m.nodeDuration); err != nil {
		return nil, err
	}
	if m.activeNodes, err = register(reg, m.activeNodes); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, or returns the existing collector when an equal one is
// already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register flow metrics: %w", err)
	}
	return c, nil
}

// Order returns MetricsOrder.
func (m *Metrics) Order() int { return MetricsOrder }

// Before counts the node as active.
func (m *Metrics) Before(*flow.CallbackContext) error {
	m.activeNodes.Inc()
	return nil
}

// After does nothing.
func (m *Metrics) After(*flow.AfterContext) error { return nil }

// Finally records the outcome and the elapsed time since the node started, read
// from the run's clock.
func (m *Metrics) Finally(c *flow.FinallyContext) error {
	m.activeNodes.Dec()
	state := flow.StateSucceeded
	if c.Err != nil {
		state = flow.StateFailed
	}
	m.nodeRuns.WithLabelValues(state.String()).Inc()
	if c.Trace != nil && !c.Trace.Start().IsZero() {
		m.nodeDuration.WithLabelValues(c.Node.Name()).Observe(c.Run.Clock().Now().Sub(c.Trace.Start()).Seconds())
	}
	return nil
}

// RunFinished counts a finished run.  Skipped nodes never reach a callback, so
// they are counted here from the run's final states.
func (m *Metrics) RunFinished(rc *flow.RunContext, err error) {
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	m.runs.WithLabelValues(outcome).Inc()
	if rc == nil {
		return
	}
	for _, n := range rc.Nodes() {
		if n.State() == flow.StateSkipped {
			m.nodeRuns.WithLabelValues(flow.StateSkipped.String()).Inc()
		}
	}
}
