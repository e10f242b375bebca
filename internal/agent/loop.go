// Package agent runs the bounded model/tool loop: call the model, execute
// requested tools, feed results back, and stop on a final answer or a limit.
package agent

import (
	"context"
	"math"
	"strings"

	"lesson-assistant/internal/model"
	"lesson-assistant/internal/tools"
)

// DefaultMaxTurns bounds model calls when Params.MaxTurns is unset.
const DefaultMaxTurns = 25

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusErrorMaxTurns  Status = "error_max_turns"
	StatusErrorMaxBudget Status = "error_max_budget"
)

// ModelCaller is the slice of the model adapter the loop needs.
type ModelCaller interface {
	Call(ctx context.Context, provider model.Provider, modelName string, messages []model.ChatMessage, opts ...model.CallOption) (*model.ModelResponse, error)
}

// ToolDispatcher advertises and executes tools.
type ToolDispatcher interface {
	ModelDefinitions() []model.ToolDefinition
	Dispatch(ctx context.Context, call model.ToolCall, tc tools.Context) tools.Result
}

// Deps are the collaborators of a run.
type Deps struct {
	Model ModelCaller
	Tools ToolDispatcher
}

// Hooks observe tool activity. They never alter the run.
type Hooks struct {
	OnToolCall   func(call model.ToolCall)
	OnToolResult func(call model.ToolCall, result tools.Result)
}

// Params configures one run.
type Params struct {
	TeacherID string
	SessionID string
	Provider  model.Provider
	Model     string
	// Messages is the conversation including any system prompt. It is copied.
	Messages  []model.ChatMessage
	MaxTokens int
	// MaxTurns defaults to DefaultMaxTurns when zero or negative.
	MaxTurns int
	// MaxBudgetUSD is nil for an unlimited budget.
	MaxBudgetUSD *float64
	Hooks        Hooks
}

// Result is the outcome of a run. Messages never contain system turns.
type Result struct {
	Status       Status
	Messages     []model.ChatMessage
	Usage        model.TokenUsage
	SkillsLoaded []string
}

// Budget returns a pointer suitable for Params.MaxBudgetUSD, or nil when
// usd is +Inf.
func Budget(usd float64) *float64 {
	if math.IsInf(usd, 1) {
		return nil
	}
	return &usd
}

type run struct {
	messages []model.ChatMessage
	usage    model.TokenUsage
	skills   []string
	seen     map[string]bool
}

func (r *run) result(status Status) *Result {
	skills := r.skills
	if skills == nil {
		skills = []string{}
	}
	return &Result{
		Status:       status,
		Messages:     model.StripSystem(r.messages),
		Usage:        r.usage,
		SkillsLoaded: skills,
	}
}

func (r *run) recordSkill(name string) {
	if name == "" || r.seen[name] {
		return
	}
	r.seen[name] = true
	r.skills = append(r.skills, name)
}

// Run drives the loop until the model answers without tool calls, the turn
// limit is reached, or accumulated cost exceeds the budget. Adapter errors
// are returned unchanged.
func Run(ctx context.Context, deps Deps, p Params) (*Result, error) {
	maxTurns := p.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	budget := math.Inf(1)
	if p.MaxBudgetUSD != nil {
		budget = *p.MaxBudgetUSD
	}

	r := &run{
		messages: append([]model.ChatMessage(nil), p.Messages...),
		seen:     map[string]bool{},
	}
	tc := tools.Context{TeacherID: p.TeacherID, SessionID: p.SessionID}
	opts := []model.CallOption{model.WithTools(deps.Tools.ModelDefinitions())}
	if p.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(p.MaxTokens))
	}

	for turn := 0; turn < maxTurns; turn++ {
		if r.usage.EstimatedCostUSD > budget {
			return r.result(StatusErrorMaxBudget), nil
		}

		resp, err := deps.Model.Call(ctx, p.Provider, p.Model, r.messages, opts...)
		if err != nil {
			return nil, err
		}
		r.usage = r.usage.Add(resp.Usage)

		if r.usage.EstimatedCostUSD > budget {
			return r.result(StatusErrorMaxBudget), nil
		}

		if len(resp.ToolCalls) == 0 {
			r.messages = append(r.messages, model.ChatMessage{Role: model.RoleAssistant, Content: resp.Content})
			return r.result(StatusSuccess), nil
		}

		if strings.TrimSpace(resp.Content) != "" {
			r.messages = append(r.messages, model.ChatMessage{Role: model.RoleAssistant, Content: resp.Content})
		}

		for _, call := range resp.ToolCalls {
			if p.Hooks.OnToolCall != nil {
				p.Hooks.OnToolCall(call)
			}
			res := deps.Tools.Dispatch(ctx, call, tc)
			if p.Hooks.OnToolResult != nil {
				p.Hooks.OnToolResult(call, res)
			}

			content := res.Output
			if res.IsError {
				content = "ERROR: " + res.Output
			}
			if res.Name == "read_skill" && !res.IsError {
				target, _ := call.Input["target"].(string)
				r.recordSkill(tools.SkillName(target))
			}

			r.messages = append(r.messages, model.ChatMessage{
				Role:       model.RoleTool,
				Content:    content,
				ToolCallID: call.ID,
				ToolName:   res.Name,
				ToolInput:  call.Input,
				ToolError:  res.IsError,
			})
		}
	}

	return r.result(StatusErrorMaxTurns), nil
}
