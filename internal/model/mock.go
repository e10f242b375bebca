package model

import (
	"fmt"
	"regexp"
	"strings"
)

// MockAgenticSkill is the built-in scripted scenario that loads a skill and
// one of its files before answering.
const MockAgenticSkill = "mock-agentic-skill"

// MockReply is what a scripted mock scenario produces for one turn.
type MockReply struct {
	Content   string
	ToolCalls []ToolCall
}

// MockFunc scripts a mock model. It receives the full message list,
// including tool messages from earlier turns of the same run.
type MockFunc func(provider Provider, model string, messages []ChatMessage) MockReply

// RegisterMock binds a scripted scenario to a mock model name.
func (a *Adapter) RegisterMock(model string, fn MockFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mocks[model] = fn
}

func (a *Adapter) callMock(p Provider, model string, messages []ChatMessage, onDelta func(string)) *ModelResponse {
	a.mu.RLock()
	fn, ok := a.mocks[model]
	a.mu.RUnlock()

	var reply MockReply
	if ok {
		reply = fn(p, model, messages)
	} else {
		reply = MockReply{Content: DefaultMockContent(p, model, messages)}
	}

	if onDelta != nil {
		for _, chunk := range ChunkText(reply.Content) {
			if chunk != "" {
				onDelta(chunk)
			}
		}
	}
	resp := &ModelResponse{Content: reply.Content, ToolCalls: reply.ToolCalls}
	return finalize(resp, messages, 0, 0, false)
}

// DefaultMockContent echoes the latest user message with a provider/model tag.
func DefaultMockContent(p Provider, model string, messages []ChatMessage) string {
	return fmt.Sprintf("[mock:%s/%s] %s", p, model, LatestUserMessage(messages))
}

var chunkPattern = regexp.MustCompile(`\S+\s*`)

// ChunkText splits content into word-plus-trailing-whitespace chunks. Leading
// whitespace becomes its own chunk so the chunks always concatenate to content.
// Content with no non-space runs is returned whole.
func ChunkText(content string) []string {
	parts := chunkPattern.FindAllString(content, -1)
	if len(parts) == 0 {
		return []string{content}
	}
	if rest := strings.TrimLeft(content, " \t\n\f\r"); len(rest) < len(content) {
		parts = append([]string{content[:len(content)-len(rest)]}, parts...)
	}
	return parts
}

// ToolTurnsSinceUser counts tool messages after the latest user message.
// Scripted scenarios use it to pick their next step.
func ToolTurnsSinceUser(messages []ChatMessage) int {
	n := 0
	for i := len(messages) - 1; i >= 0; i-- {
		switch messages[i].Role {
		case RoleUser:
			return n
		case RoleTool:
			n++
		}
	}
	return n
}

func agenticSkillScenario(p Provider, model string, messages []ChatMessage) MockReply {
	switch ToolTurnsSinceUser(messages) {
	case 0:
		return MockReply{
			Content: "Loading the backward-design skill.",
			ToolCalls: []ToolCall{{
				ID:    "mock_1",
				Name:  "read_skill",
				Input: map[string]any{"target": "backward-design"},
			}},
		}
	case 1:
		return MockReply{
			ToolCalls: []ToolCall{{
				ID:    "mock_2",
				Name:  "read_skill",
				Input: map[string]any{"target": "backward-design/examples.md"},
			}},
		}
	default:
		return MockReply{
			Content: fmt.Sprintf("[mock:%s/%s] Lesson plan drafted with backward-design for: %s", p, model, LatestUserMessage(messages)),
		}
	}
}
