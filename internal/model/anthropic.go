package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

func (a *Adapter) anthropicClient() anthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(a.cfg.AnthropicKey),
		option.WithMaxRetries(0),
	}
	if a.cfg.AnthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.AnthropicBaseURL))
	}
	if a.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(a.cfg.HTTPClient))
	}
	return anthropic.NewClient(opts...)
}

func (a *Adapter) callAnthropic(ctx context.Context, model string, messages []ChatMessage, onDelta func(string), o callOptions) (*ModelResponse, error) {
	client := a.anthropicClient()
	params := anthropicParams(model, messages, o)

	var msg anthropic.Message
	if onDelta == nil {
		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("anthropic request failed: %w", err)
		}
		msg = *resp
	} else {
		stream := client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		textBlocks := 0
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				return nil, fmt.Errorf("anthropic stream failed: %w", err)
			}
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type == "text" {
					// Blocks are newline-joined in Content; stream the separator too.
					if textBlocks > 0 {
						onDelta("\n")
					}
					textBlocks++
				}
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					onDelta(delta.Text)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return nil, fmt.Errorf("anthropic stream failed: %w", err)
		}
	}

	resp := &ModelResponse{
		Content:   anthropicText(msg.Content),
		ToolCalls: anthropicToolCalls(msg.Content),
	}
	return finalize(resp, messages, int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens),
		msg.StopReason == anthropic.StopReasonMaxTokens), nil
}

func anthropicParams(model string, messages []ChatMessage, o callOptions) anthropic.MessageNewParams {
	maxTokens := o.maxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  anthropicMessages(messages),
	}
	var system []string
	for _, msg := range messages {
		if msg.Role == RoleSystem && strings.TrimSpace(msg.Content) != "" {
			system = append(system, msg.Content)
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if len(o.tools) > 0 {
		params.Tools = anthropicTools(o.tools)
	}
	return params
}

func anthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Properties: def.Parameters["properties"],
		}
		extra := map[string]any{}
		if required, ok := def.Parameters["required"]; ok {
			extra["required"] = required
		}
		if additional, ok := def.Parameters["additionalProperties"]; ok {
			extra["additionalProperties"] = additional
		}
		if len(extra) > 0 {
			schema.ExtraFields = extra
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: schema,
		}})
	}
	return out
}

type anthropicTurn struct {
	assistant bool
	blocks    []anthropic.ContentBlockParamUnion
}

// anthropicMessages renders the conversation as alternating user/assistant
// turns. A run of tool messages becomes tool_use blocks on the assistant turn
// followed by a user turn of tool_result blocks.
func anthropicMessages(messages []ChatMessage) []anthropic.MessageParam {
	var turns []anthropicTurn
	appendBlocks := func(assistant bool, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].assistant == assistant {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			return
		}
		turns = append(turns, anthropicTurn{assistant: assistant, blocks: blocks})
	}

	input := StripSystem(messages)
	for i := 0; i < len(input); i++ {
		msg := input[i]
		switch msg.Role {
		case RoleUser:
			if msg.Content != "" {
				appendBlocks(false, anthropic.NewTextBlock(msg.Content))
			}
		case RoleAssistant:
			if msg.Content != "" {
				appendBlocks(true, anthropic.NewTextBlock(msg.Content))
			}
		case RoleTool:
			j := i
			var uses, results []anthropic.ContentBlockParamUnion
			for ; j < len(input) && input[j].Role == RoleTool; j++ {
				tm := input[j]
				args := tm.ToolInput
				if args == nil {
					args = map[string]any{}
				}
				uses = append(uses, anthropic.NewToolUseBlock(tm.ToolCallID, args, tm.ToolName))
				results = append(results, anthropic.NewToolResultBlock(tm.ToolCallID, tm.Content, tm.ToolError))
			}
			appendBlocks(true, uses...)
			appendBlocks(false, results...)
			i = j - 1
		}
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		if turn.assistant {
			out = append(out, anthropic.NewAssistantMessage(turn.blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(turn.blocks...))
		}
	}
	return out
}

// anthropicText joins text blocks with "\n".
func anthropicText(blocks []anthropic.ContentBlockUnion) string {
	var parts []string
	for _, block := range blocks {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func anthropicToolCalls(blocks []anthropic.ContentBlockUnion) []ToolCall {
	var calls []ToolCall
	for _, block := range blocks {
		use, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || use.ID == "" || use.Name == "" {
			continue
		}
		calls = append(calls, ToolCall{ID: use.ID, Name: use.Name, Input: parseArguments(use.Input)})
	}
	return calls
}

// parseArguments decodes a JSON object, yielding an empty map for anything else.
func parseArguments(raw []byte) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded == nil {
		return args
	}
	return decoded
}
