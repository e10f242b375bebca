// Package metrics exposes Prometheus counters for model calls, tool
// dispatches and agent runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lesson-assistant/internal/model"
)

// Recorder implements the model and tool observers. A nil Recorder is a no-op.
type Recorder struct {
	registry   *prometheus.Registry
	modelCalls *prometheus.CounterVec
	tokens     *prometheus.CounterVec
	cost       *prometheus.CounterVec
	toolCalls  *prometheus.CounterVec
	agentRuns  *prometheus.CounterVec
}

// New registers the counters on a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		modelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_model_calls_total",
				Help: "Model invocations by provider and outcome",
			},
			[]string{"provider", "status"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_model_tokens_total",
				Help: "Tokens consumed by provider and direction",
			},
			[]string{"provider", "direction"},
		),
		cost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_model_cost_usd_total",
				Help: "Estimated model spend in USD by provider",
			},
			[]string{"provider"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_tool_dispatches_total",
				Help: "Tool dispatches by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		agentRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_agent_runs_total",
				Help: "Agent loop executions by final status",
			},
			[]string{"status"},
		),
	}
	r.registry.MustRegister(r.modelCalls, r.tokens, r.cost, r.toolCalls, r.agentRuns)
	return r
}

// ObserveModelCall records one adapter invocation.
func (r *Recorder) ObserveModelCall(provider model.Provider, _ string, usage model.TokenUsage, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if model.IsConfigurationError(err) {
			status = "config_error"
		}
	}
	p := string(provider)
	r.modelCalls.WithLabelValues(p, status).Inc()
	if err != nil {
		return
	}
	r.tokens.WithLabelValues(p, "input").Add(float64(usage.InputTokens))
	r.tokens.WithLabelValues(p, "output").Add(float64(usage.OutputTokens))
	r.cost.WithLabelValues(p).Add(usage.EstimatedCostUSD)
}

// ObserveToolDispatch records one tool dispatch.
func (r *Recorder) ObserveToolDispatch(name string, isError bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	r.toolCalls.WithLabelValues(name, outcome).Inc()
}

// ObserveAgentRun records the final status of an agent loop or direct call.
func (r *Recorder) ObserveAgentRun(status string) {
	if r == nil {
		return
	}
	r.agentRuns.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
