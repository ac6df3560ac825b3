package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors. Observability is
// ambient, not a spec feature, so this stays small: turns, tool calls, and
// broadcast health are the things an operator actually watches.
type Metrics struct {
	AgentTurns       *prometheus.CounterVec
	AgentTurnSeconds *prometheus.HistogramVec
	ToolExecutions   *prometheus.CounterVec
	BroadcastDrops   prometheus.Counter
	ActiveSessions   prometheus.Gauge
}

// NewMetrics registers the gateway's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with other
// Server instances registered against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentTurns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chai_agent_turns_total",
				Help: "Total number of agent loop turns, by backend and outcome",
			},
			[]string{"backend", "status"},
		),
		AgentTurnSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chai_agent_turn_duration_seconds",
				Help:    "Duration of a full agent loop turn in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chai_tool_executions_total",
				Help: "Total number of tool executions, by skill and outcome",
			},
			[]string{"skill", "status"},
		),
		BroadcastDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chai_broadcast_drops_total",
				Help: "Total number of broadcast events dropped for lagging subscribers",
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chai_active_sessions",
				Help: "Current number of sessions held in memory",
			},
		),
	}
}

// RecordAgentTurn records the outcome and latency of one agent loop turn.
func (m *Metrics) RecordAgentTurn(backend, status string, seconds float64) {
	if m == nil {
		return
	}
	m.AgentTurns.WithLabelValues(backend, status).Inc()
	m.AgentTurnSeconds.WithLabelValues(backend).Observe(seconds)
}

// RecordToolExecution records the outcome of one tool invocation.
func (m *Metrics) RecordToolExecution(skill, status string) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(skill, status).Inc()
}

// RecordBroadcastDrop increments the dropped-event counter.
func (m *Metrics) RecordBroadcastDrop() {
	if m == nil {
		return
	}
	m.BroadcastDrops.Inc()
}

// SetActiveSessions reports the current in-memory session count. Nothing in
// the gateway calls it, so the active-sessions gauge stays at zero.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
