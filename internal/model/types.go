// Package model wraps LLM provider APIs behind one call/stream contract and
// normalizes their responses into a single ModelResponse shape.
package model

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons.
const (
	StopReasonStop      = "stop"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
	StopReasonError     = "error"
)

// ChatMessage is one conversational turn. Tool fields are only set when Role is "tool".
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	ToolInput  map[string]any `json:"toolInput,omitempty"`
	ToolError  bool           `json:"toolError,omitempty"`
}

// ToolCall is a model-issued request to run a named tool.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ModelResponse is the normalized result of one model invocation.
type ModelResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls"`
	Usage      TokenUsage `json:"usage"`
	StopReason string     `json:"stopReason"`
}

// ToolDefinition is the provider-neutral description of a tool advertised to a model.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON-Schema object: type, properties, required, additionalProperties.
	Parameters map[string]any
}

// StripSystem returns messages without system turns. The input is not modified.
func StripSystem(messages []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// LatestUserMessage returns the content of the last user turn, or "".
func LatestUserMessage(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
