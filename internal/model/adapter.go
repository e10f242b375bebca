package model

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// Config holds provider credentials and endpoint overrides.
type Config struct {
	AnthropicKey     string
	AnthropicBaseURL string
	OpenAIKey        string
	OpenAIBaseURL    string
	// HTTPClient is used for provider requests when set.
	HTTPClient *http.Client
}

// Observer receives the outcome of every adapter invocation.
type Observer interface {
	ObserveModelCall(provider Provider, model string, usage TokenUsage, err error)
}

// Adapter dispatches calls to the configured providers or to registered mock scenarios.
type Adapter struct {
	cfg      Config
	observer Observer

	mu    sync.RWMutex
	mocks map[string]MockFunc
}

// NewAdapter creates an adapter with the built-in mock scenarios registered.
func NewAdapter(cfg Config) *Adapter {
	a := &Adapter{
		cfg:   cfg,
		mocks: make(map[string]MockFunc),
	}
	a.RegisterMock(MockAgenticSkill, agenticSkillScenario)
	return a
}

// SetObserver installs an observer for call outcomes.
func (a *Adapter) SetObserver(o Observer) {
	a.observer = o
}

// CallOption customizes one adapter invocation.
type CallOption func(*callOptions)

type callOptions struct {
	maxTokens int
	tools     []ToolDefinition
}

// WithMaxTokens caps the response length. Zero means provider default.
func WithMaxTokens(n int) CallOption {
	return func(o *callOptions) {
		o.maxTokens = n
	}
}

// WithTools advertises tool definitions to the model.
func WithTools(defs []ToolDefinition) CallOption {
	return func(o *callOptions) {
		o.tools = defs
	}
}

// IsMockModel reports whether model bypasses the network.
func IsMockModel(model string) bool {
	return model == "mock" || strings.HasPrefix(model, "mock-")
}

// Call performs one non-streaming model invocation.
func (a *Adapter) Call(ctx context.Context, provider Provider, model string, messages []ChatMessage, opts ...CallOption) (*ModelResponse, error) {
	return a.invoke(ctx, provider, model, messages, nil, opts)
}

// Stream performs one streaming invocation. onDelta receives visible text
// fragments in arrival order; the returned Content is their concatenation.
func (a *Adapter) Stream(ctx context.Context, provider Provider, model string, messages []ChatMessage, onDelta func(string), opts ...CallOption) (*ModelResponse, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return a.invoke(ctx, provider, model, messages, onDelta, opts)
}

func (a *Adapter) invoke(ctx context.Context, provider Provider, model string, messages []ChatMessage, onDelta func(string), opts []CallOption) (*ModelResponse, error) {
	p, err := ValidateProvider(string(provider))
	if err != nil {
		return nil, err
	}
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	resp, err := a.dispatch(ctx, p, model, messages, onDelta, o)
	if a.observer != nil {
		var usage TokenUsage
		if resp != nil {
			usage = resp.Usage
		}
		a.observer.ObserveModelCall(p, model, usage, err)
	}
	return resp, err
}

func (a *Adapter) dispatch(ctx context.Context, p Provider, model string, messages []ChatMessage, onDelta func(string), o callOptions) (*ModelResponse, error) {
	if IsMockModel(model) {
		return a.callMock(p, model, messages, onDelta), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch p {
	case ProviderAnthropic:
		if a.cfg.AnthropicKey == "" {
			return nil, missingKeyError(p)
		}
		return a.callAnthropic(ctx, model, messages, onDelta, o)
	case ProviderOpenAI:
		if a.cfg.OpenAIKey == "" {
			return nil, missingKeyError(p)
		}
		return a.callOpenAI(ctx, model, messages, onDelta, o)
	default:
		return nil, ErrUnsupportedProvider
	}
}

// finalize fills usage from estimates when the provider reported none and
// derives the stop reason.
func finalize(resp *ModelResponse, messages []ChatMessage, input, output int, maxTokensHit bool) *ModelResponse {
	estimate := EstimateUsage(messages, resp.Content)
	if input <= 0 {
		input = estimate.InputTokens
	}
	if output <= 0 {
		output = estimate.OutputTokens
	}
	resp.Usage = NewUsage(input, output)
	switch {
	case len(resp.ToolCalls) > 0:
		resp.StopReason = StopReasonToolUse
	case maxTokensHit:
		resp.StopReason = StopReasonMaxTokens
	default:
		resp.StopReason = StopReasonStop
	}
	if resp.ToolCalls == nil {
		resp.ToolCalls = []ToolCall{}
	}
	return resp
}
