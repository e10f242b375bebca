package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lesson-assistant/internal/model"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveModelCall(model.ProviderOpenAI, "mock", model.NewUsage(10, 5), nil)
	r.ObserveModelCall(model.ProviderOpenAI, "gpt-4o", model.TokenUsage{}, &model.ModelConfigurationError{Message: "missing"})
	r.ObserveModelCall(model.ProviderAnthropic, "claude", model.TokenUsage{}, errors.New("boom"))
	r.ObserveToolDispatch("read_file", false)
	r.ObserveToolDispatch("read_file", true)
	r.ObserveAgentRun("success")

	if got := testutil.ToFloat64(r.modelCalls.WithLabelValues("openai", "ok")); got != 1 {
		t.Fatalf("openai ok=%v", got)
	}
	if got := testutil.ToFloat64(r.modelCalls.WithLabelValues("openai", "config_error")); got != 1 {
		t.Fatalf("openai config_error=%v", got)
	}
	if got := testutil.ToFloat64(r.modelCalls.WithLabelValues("anthropic", "error")); got != 1 {
		t.Fatalf("anthropic error=%v", got)
	}
	if got := testutil.ToFloat64(r.tokens.WithLabelValues("openai", "input")); got != 10 {
		t.Fatalf("input tokens=%v", got)
	}
	if got := testutil.ToFloat64(r.toolCalls.WithLabelValues("read_file", "error")); got != 1 {
		t.Fatalf("tool errors=%v", got)
	}
	if got := testutil.ToFloat64(r.agentRuns.WithLabelValues("success")); got != 1 {
		t.Fatalf("agent runs=%v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveModelCall(model.ProviderOpenAI, "mock", model.TokenUsage{}, nil)
	r.ObserveToolDispatch("read_file", false)
	r.ObserveAgentRun("success")
}

func TestHandlerServesMetrics(t *testing.T) {
	r := New()
	r.ObserveAgentRun("error_max_turns")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `assistant_agent_runs_total{status="error_max_turns"} 1`) {
		t.Fatalf("metrics body missing counter:\n%s", body)
	}
}
