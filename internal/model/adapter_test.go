package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateProvider(t *testing.T) {
	for _, name := range []string{"anthropic", "openai"} {
		if _, err := ValidateProvider(name); err != nil {
			t.Fatalf("ValidateProvider(%q) err=%v", name, err)
		}
	}
	for _, name := range []string{"", "gemini", "OpenAI"} {
		_, err := ValidateProvider(name)
		if !errors.Is(err, ErrUnsupportedProvider) {
			t.Fatalf("ValidateProvider(%q) err=%v want ErrUnsupportedProvider", name, err)
		}
		if !IsConfigurationError(err) {
			t.Fatalf("unsupported provider should be a configuration error")
		}
	}
}

func TestCallRejectsInvalidProviderBeforeMock(t *testing.T) {
	a := NewAdapter(Config{})
	_, err := a.Call(context.Background(), Provider("gemini"), "mock", []ChatMessage{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("err=%v want ErrUnsupportedProvider", err)
	}
}

func TestMockEchoesLatestUserMessage(t *testing.T) {
	a := NewAdapter(Config{})
	messages := []ChatMessage{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second question"},
	}
	resp, err := a.Call(context.Background(), ProviderOpenAI, "mock-openai", messages)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Content != "[mock:openai/mock-openai] second question" {
		t.Fatalf("content=%q", resp.Content)
	}
	if resp.StopReason != StopReasonStop {
		t.Fatalf("stopReason=%q want stop", resp.StopReason)
	}
	if len(resp.ToolCalls) != 0 {
		t.Fatalf("toolCalls=%v want none", resp.ToolCalls)
	}
	want := EstimateUsage(messages, resp.Content)
	if diff := cmp.Diff(want, resp.Usage); diff != "" {
		t.Fatalf("usage mismatch (-want +got):\n%s", diff)
	}
}

func TestMockStreamMatchesCall(t *testing.T) {
	a := NewAdapter(Config{})
	messages := []ChatMessage{{Role: RoleUser, Content: "plan a  lesson on\tfractions"}}

	called, err := a.Call(context.Background(), ProviderAnthropic, "mock", messages)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	var deltas []string
	streamed, err := a.Stream(context.Background(), ProviderAnthropic, "mock", messages, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if strings.Join(deltas, "") != streamed.Content {
		t.Fatalf("deltas %q do not concatenate to %q", deltas, streamed.Content)
	}
	if diff := cmp.Diff(called, streamed); diff != "" {
		t.Fatalf("stream and call differ (-call +stream):\n%s", diff)
	}
	if len(deltas) < 2 {
		t.Fatalf("expected multiple chunks, got %q", deltas)
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"hello world", []string{"hello ", "world"}},
		{"a  b\n", []string{"a  ", "b\n"}},
		{"", []string{""}},
		{"   ", []string{"   "}},
		{"\n\n hi there", []string{"\n\n ", "hi ", "there"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ChunkText(tt.in)); diff != "" {
			t.Fatalf("ChunkText(%q) mismatch:\n%s", tt.in, diff)
		}
	}
}

func TestMissingKeyIsConfigurationError(t *testing.T) {
	a := NewAdapter(Config{})
	tests := []struct {
		provider Provider
		want     string
	}{
		{ProviderAnthropic, "Missing ANTHROPIC API key. Select a mock model or configure the key."},
		{ProviderOpenAI, "Missing OPENAI API key. Select a mock model or configure the key."},
	}
	for _, tt := range tests {
		_, err := a.Call(context.Background(), tt.provider, "real-model", []ChatMessage{{Role: RoleUser, Content: "hi"}})
		var cfgErr *ModelConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("err=%v want ModelConfigurationError", err)
		}
		if cfgErr.Error() != tt.want {
			t.Fatalf("message=%q want %q", cfgErr.Error(), tt.want)
		}
	}
}

func TestAgenticSkillScenarioSequence(t *testing.T) {
	a := NewAdapter(Config{})
	messages := []ChatMessage{{Role: RoleUser, Content: "Create a lesson"}}

	first, err := a.Call(context.Background(), ProviderOpenAI, MockAgenticSkill, messages)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if first.StopReason != StopReasonToolUse || len(first.ToolCalls) != 1 {
		t.Fatalf("first response=%+v want one tool call", first)
	}
	if got := first.ToolCalls[0].Input["target"]; got != "backward-design" {
		t.Fatalf("first target=%v", got)
	}

	messages = append(messages, ChatMessage{Role: RoleTool, Content: "skill", ToolCallID: "mock_1", ToolName: "read_skill"})
	second, _ := a.Call(context.Background(), ProviderOpenAI, MockAgenticSkill, messages)
	if len(second.ToolCalls) != 1 || second.ToolCalls[0].Input["target"] != "backward-design/examples.md" {
		t.Fatalf("second response=%+v", second)
	}

	messages = append(messages, ChatMessage{Role: RoleTool, Content: "examples", ToolCallID: "mock_2", ToolName: "read_skill"})
	third, _ := a.Call(context.Background(), ProviderOpenAI, MockAgenticSkill, messages)
	if len(third.ToolCalls) != 0 || third.StopReason != StopReasonStop {
		t.Fatalf("third response=%+v want final answer", third)
	}
}

func TestRegisterMockOverridesDefault(t *testing.T) {
	a := NewAdapter(Config{})
	a.RegisterMock("mock-fixed", func(Provider, string, []ChatMessage) MockReply {
		return MockReply{Content: "fixed"}
	})
	resp, err := a.Call(context.Background(), ProviderOpenAI, "mock-fixed", []ChatMessage{{Role: RoleUser, Content: "x"}})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if resp.Content != "fixed" {
		t.Fatalf("content=%q want fixed", resp.Content)
	}
}

type recordingObserver struct {
	calls int
	err   error
}

func (r *recordingObserver) ObserveModelCall(_ Provider, _ string, _ TokenUsage, err error) {
	r.calls++
	r.err = err
}

func TestMockStreamSkipsEmptyContent(t *testing.T) {
	a := NewAdapter(Config{})
	a.RegisterMock("mock-silent", func(Provider, string, []ChatMessage) MockReply {
		return MockReply{ToolCalls: []ToolCall{{ID: "call_1", Name: "list_directory", Input: map[string]any{}}}}
	})
	var deltas []string
	resp, err := a.Stream(context.Background(), ProviderOpenAI, "mock-silent", []ChatMessage{{Role: RoleUser, Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(deltas) != 0 {
		t.Fatalf("deltas=%q want none for empty content", deltas)
	}
	if resp.StopReason != StopReasonToolUse {
		t.Fatalf("stopReason=%q want tool_use", resp.StopReason)
	}
}

func TestObserverSeesEveryCall(t *testing.T) {
	a := NewAdapter(Config{})
	obs := &recordingObserver{}
	a.SetObserver(obs)
	_, _ = a.Call(context.Background(), ProviderOpenAI, "mock", []ChatMessage{{Role: RoleUser, Content: "x"}})
	_, _ = a.Call(context.Background(), ProviderOpenAI, "gpt-4o", []ChatMessage{{Role: RoleUser, Content: "x"}})
	if obs.calls != 2 {
		t.Fatalf("calls=%d want 2", obs.calls)
	}
	if obs.err == nil {
		t.Fatal("expected last observed call to carry the missing key error")
	}
}

func TestStripSystemDoesNotMutateInput(t *testing.T) {
	in := []ChatMessage{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "u"}}
	out := StripSystem(in)
	if len(out) != 1 || out[0].Role != RoleUser {
		t.Fatalf("out=%v", out)
	}
	if len(in) != 2 || in[0].Role != RoleSystem {
		t.Fatalf("input was modified: %v", in)
	}
}
