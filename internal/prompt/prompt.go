// Package prompt assembles the system prompt from tagged sections.
package prompt

import (
	"fmt"
	"strings"

	"lesson-assistant/internal/model"
	"lesson-assistant/internal/workspace"
)

// DefaultAgentInstructions frame the assistant's job for every chat.
const DefaultAgentInstructions = `
You support teachers to design lesson resources.

Rules:
- Produce draft outputs suitable for teacher review.
- Reference relevant workspace context where possible.
- If context is missing, ask concise clarification questions.
- Keep claims grounded in the provided workspace files.
- Use tool calls to load additional workspace files only when needed.
- For class-targeted requests, prefer reading ` + "`classes/{classRef}/CLASS.md`" + ` before making class-specific claims.
`

// DefaultToolInstructions describe how the tool catalog should be used.
const DefaultToolInstructions = `
- read_file and list_directory inspect the teacher's workspace; paths are relative to its root.
- write_file replaces a whole file. Prefer str_replace for small edits; its old text must match exactly once.
- read_skill loads a skill from the manifest: "name" for its SKILL.md, "name/file.md" for supporting files.
- update_tasks keeps a short task list for multi-step work in this session.
`

const (
	noWorkspaceContext = "No workspace context loaded."
	noSkills           = "No skills available."
	noToolInstructions = "No tool instructions configured for this environment."
)

// Params are the inputs to Assemble. Empty optional sections fall back to placeholders.
type Params struct {
	AssistantIdentity string
	AgentInstructions string
	WorkspaceContext  []workspace.Section
	SkillManifest     string
	ToolInstructions  string
}

// Assembled is the rendered system prompt.
type Assembled struct {
	SystemPrompt    string
	EstimatedTokens int
}

type section struct {
	tag     string
	content string
}

// Assemble renders the sections in fixed order, each wrapped in its XML-style tag.
func Assemble(p Params) Assembled {
	blocks := make([]string, 0, len(p.WorkspaceContext))
	for _, item := range p.WorkspaceContext {
		blocks = append(blocks, fmt.Sprintf("## %s\n%s", item.Path, strings.TrimSpace(item.Content)))
	}

	sections := []section{
		{"assistant-identity", p.AssistantIdentity},
		{"agent-instructions", p.AgentInstructions},
		{"workspace-context", orDefault(strings.Join(blocks, "\n\n"), noWorkspaceContext)},
		{"skill-manifest", orDefault(p.SkillManifest, noSkills)},
		{"tool-instructions", orDefault(p.ToolInstructions, noToolInstructions)},
	}

	rendered := make([]string, 0, len(sections))
	for _, s := range sections {
		rendered = append(rendered, fmt.Sprintf("<%s>\n%s\n</%s>", s.tag, strings.TrimSpace(s.content), s.tag))
	}
	systemPrompt := strings.Join(rendered, "\n\n")
	return Assembled{
		SystemPrompt:    systemPrompt,
		EstimatedTokens: model.EstimateTokens(systemPrompt),
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
