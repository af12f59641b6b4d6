// Package metrics exposes Prometheus counters and histograms for the agent's
// tick loop: FSM transitions, rebalances, swap attempts and decision latency.
// Grounded on the teacher's use of github.com/prometheus/client_golang for
// process-level instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StateTransitions counts FSM transitions per controller, from-state and
	// to-state.
	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm_agent",
		Name:      "state_transitions_total",
		Help:      "Number of FSM state transitions, labeled by controller, from_state and to_state.",
	}, []string{"controller_id", "from_state", "to_state"})

	// Rebalances counts rebalances triggered per controller: each LP stop
	// dispatched by the rebalance flow.
	Rebalances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm_agent",
		Name:      "rebalances_total",
		Help:      "Number of rebalance actions dispatched, labeled by controller.",
	}, []string{"controller_id"})

	// SwapAttempts counts swap executor submissions per controller and purpose
	// (the swap's level id: inventory, inventory_rebalance, liquidate,
	// stoploss).
	SwapAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm_agent",
		Name:      "swap_attempts_total",
		Help:      "Number of swap executors submitted, labeled by controller and purpose.",
	}, []string{"controller_id", "purpose"})

	// ExitTriggers counts stop-loss/take-profit/manual-kill triggers per
	// controller and reason.
	ExitTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clmm_agent",
		Name:      "exit_triggers_total",
		Help:      "Number of exit-policy triggers (stop_loss, take_profit, manual_stop), labeled by controller and reason.",
	}, []string{"controller_id", "reason"})

	// DecisionLatency measures wall-clock time spent inside one Decide call.
	DecisionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clmm_agent",
		Name:      "decision_latency_seconds",
		Help:      "Latency of a single Decide invocation, labeled by controller.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"controller_id"})

	// ActiveControllers reports how many pools are currently in the running
	// lifecycle state.
	ActiveControllers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "clmm_agent",
		Name:      "active_controllers",
		Help:      "Number of pool controllers currently running.",
	})
)

// Handler returns the Prometheus scrape handler for wiring into an HTTP mux.
func Handler() http.Handler {
	return promhttp.Handler()
}
