package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Task is one entry of a session's task list.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type updateTasksArgs struct {
	Operation string `json:"operation" jsonschema:"enum=add,enum=update,enum=complete"`
	ID        string `json:"id,omitempty"`
	Text      string `json:"text,omitempty"`
}

func (r *Registry) updateTasks(ctx context.Context, tc Context, args updateTasksArgs) (string, error) {
	if tc.SessionID == "" {
		return "", errors.New("update_tasks requires sessionId")
	}
	if r.tasks == nil {
		return "", errors.New("Session not found")
	}
	current, err := r.tasks.Tasks(ctx, tc.TeacherID, tc.SessionID)
	if err != nil {
		return "", errors.New("Session not found")
	}

	next, err := applyTaskOperation(current, args)
	if err != nil {
		return "", err
	}
	if err := r.tasks.SetTasks(ctx, tc.TeacherID, tc.SessionID, next); err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// applyTaskOperation returns a new task list; the input is not modified.
func applyTaskOperation(tasks []Task, args updateTasksArgs) ([]Task, error) {
	next := append([]Task{}, tasks...)

	if args.Operation == "add" {
		text := strings.TrimSpace(args.Text)
		if text == "" {
			return nil, errors.New("update_tasks add requires text")
		}
		return append(next, Task{ID: fmt.Sprintf("task-%d", len(tasks)+1), Text: text}), nil
	}

	id := strings.TrimSpace(args.ID)
	if id == "" {
		return nil, errors.New("update_tasks requires id for update/complete")
	}
	index := -1
	for i, task := range next {
		if task.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("Task not found: %s", id)
	}

	switch args.Operation {
	case "complete":
		next[index].Completed = true
		return next, nil
	case "update":
		text := strings.TrimSpace(args.Text)
		if text == "" {
			return nil, errors.New("update_tasks update requires text")
		}
		next[index].Text = text
		return next, nil
	default:
		return nil, errors.New("update_tasks operation must be add, update, or complete")
	}
}
