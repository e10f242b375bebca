// Package tools holds the catalog of tools the model may call and dispatches
// calls against the workspace, skills and session task stores.
package tools

import (
	"context"
	"fmt"

	"lesson-assistant/internal/model"
	"lesson-assistant/internal/skills"
	"lesson-assistant/internal/workspace"
)

// Workspace is the file store tools read and write.
type Workspace interface {
	ReadFile(ctx context.Context, teacherID, path string) (string, error)
	WriteFile(ctx context.Context, teacherID, path, content string) error
	Tree(ctx context.Context, teacherID string) ([]workspace.Node, error)
}

// SkillReader resolves skill targets.
type SkillReader interface {
	Read(target string) (skills.Document, error)
}

// TaskStore persists the per-session task list. Implementations return an
// error for sessions that do not exist or belong to another teacher.
type TaskStore interface {
	Tasks(ctx context.Context, teacherID, sessionID string) ([]Task, error)
	SetTasks(ctx context.Context, teacherID, sessionID string, tasks []Task) error
}

// Context carries the caller identity into handlers.
type Context struct {
	TeacherID string
	SessionID string
}

// Result is the outcome of one dispatch.
type Result struct {
	Name    string
	Output  string
	IsError bool
}

// Definition is a catalog entry.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Observer is notified after every dispatch.
type Observer interface {
	ObserveToolDispatch(name string, isError bool)
}

type handlerFunc func(ctx context.Context, tc Context, input map[string]any) (string, error)

type tool struct {
	Definition
	handler handlerFunc
}

// Registry is the fixed tool catalog bound to its backing stores.
type Registry struct {
	ws       Workspace
	skills   SkillReader
	tasks    TaskStore
	tools    []tool
	observer Observer
}

// NewRegistry builds the catalog in its stable order.
func NewRegistry(ws Workspace, skillReader SkillReader, tasks TaskStore) *Registry {
	r := &Registry{ws: ws, skills: skillReader, tasks: tasks}
	r.tools = []tool{
		newTool("read_file", "Read a workspace file and return content with line numbers.", r.readFile),
		newTool("write_file", "Create or overwrite a workspace file with supplied content.", r.writeFile),
		newTool("str_replace", "Replace an exact string in a workspace file. Fails if zero or multiple matches.", r.strReplace),
		newTool("list_directory", "List files and directories under a workspace path.", r.listDirectory),
		newTool("read_skill", "Read a skill file. Use 'skill-name' for SKILL.md (tier 2) or 'skill-name/file.md' (tier 3).", r.readSkill),
		newTool("update_tasks", "Manage a session task list. Operations: add(text), update(id,text), complete(id).", r.updateTasks),
	}
	return r
}

// SetObserver installs a dispatch observer.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// newTool reflects the parameter schema from the handler's argument type and
// wraps the handler with strict decoding.
func newTool[T any](name, description string, handler func(ctx context.Context, tc Context, args T) (string, error)) tool {
	var zero T
	return tool{
		Definition: Definition{
			Name:        name,
			Description: description,
			Parameters:  reflectParameters(&zero),
		},
		handler: func(ctx context.Context, tc Context, input map[string]any) (string, error) {
			var args T
			if err := decodeArgs(name, input, &args); err != nil {
				return "", err
			}
			return handler(ctx, tc, args)
		},
	}
}

// Definitions returns the catalog in stable order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Definition)
	}
	return out
}

// ModelDefinitions projects the catalog for the model adapter.
func (r *Registry) ModelDefinitions() []model.ToolDefinition {
	out := make([]model.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, model.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

// AnthropicDefinitions renders the catalog in Anthropic tool format.
func (r *Registry) AnthropicDefinitions() []map[string]any {
	out := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": t.Parameters,
		})
	}
	return out
}

// OpenAIDefinitions renders the catalog in OpenAI function tool format.
func (r *Registry) OpenAIDefinitions() []map[string]any {
	out := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return out
}

// Dispatch runs a tool call. Failures, including panics, are reported in the
// Result and never returned as errors.
func (r *Registry) Dispatch(ctx context.Context, call model.ToolCall, tc Context) (res Result) {
	defer func() {
		if r.observer != nil {
			r.observer.ObserveToolDispatch(res.Name, res.IsError)
		}
	}()

	var found *tool
	for i := range r.tools {
		if r.tools[i].Name == call.Name {
			found = &r.tools[i]
			break
		}
	}
	if found == nil {
		return Result{Name: call.Name, Output: fmt.Sprintf("Tool not found: %s", call.Name), IsError: true}
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{Name: found.Name, Output: fmt.Sprintf("tool %s failed", found.Name), IsError: true}
		}
	}()

	output, err := found.handler(ctx, tc, call.Input)
	if err != nil {
		return Result{Name: found.Name, Output: err.Error(), IsError: true}
	}
	return Result{Name: found.Name, Output: output}
}
