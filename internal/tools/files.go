package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type readFileArgs struct {
	Path string `json:"path" jsonschema:"description=Workspace-relative file path"`
}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"description=Workspace-relative file path"`
	Content string `json:"content" jsonschema:"description=Full file content to write"`
}

type strReplaceArgs struct {
	Path string `json:"path" jsonschema:"description=Workspace-relative file path"`
	Old  string `json:"old" jsonschema:"description=Exact text to replace; must appear exactly once"`
	New  string `json:"new" jsonschema:"description=Replacement text"`
}

type listDirectoryArgs struct {
	Path string `json:"path" jsonschema:"description=Directory prefix; empty lists everything"`
}

var errPathRequired = errors.New("path is required")

func (r *Registry) readFile(ctx context.Context, tc Context, args readFileArgs) (string, error) {
	path := strings.TrimSpace(args.Path)
	if path == "" {
		return "", errPathRequired
	}
	content, err := r.ws.ReadFile(ctx, tc.TeacherID, path)
	if err != nil {
		return "", err
	}
	return addLineNumbers(content), nil
}

func (r *Registry) writeFile(ctx context.Context, tc Context, args writeFileArgs) (string, error) {
	path := strings.TrimSpace(args.Path)
	if path == "" {
		return "", errPathRequired
	}
	if err := r.ws.WriteFile(ctx, tc.TeacherID, path, args.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %s", path), nil
}

func (r *Registry) strReplace(ctx context.Context, tc Context, args strReplaceArgs) (string, error) {
	path := strings.TrimSpace(args.Path)
	if path == "" {
		return "", errPathRequired
	}
	content, err := r.ws.ReadFile(ctx, tc.TeacherID, path)
	if err != nil {
		return "", err
	}
	updated, err := replaceOnce(content, args.Old, args.New)
	if err != nil {
		return "", err
	}
	if err := r.ws.WriteFile(ctx, tc.TeacherID, path, updated); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %s", path), nil
}

// replaceOnce replaces old only when it occurs exactly once. Empty old text never matches.
func replaceOnce(content, old, replacement string) (string, error) {
	n := 0
	if old != "" {
		n = strings.Count(content, old)
	}
	switch {
	case n == 0:
		return "", errors.New("Text to replace not found")
	case n > 1:
		return "", errors.New("Text to replace is ambiguous; appears multiple times")
	}
	return strings.Replace(content, old, replacement, 1), nil
}

func (r *Registry) listDirectory(ctx context.Context, tc Context, args listDirectoryArgs) (string, error) {
	prefix := strings.Trim(strings.TrimSpace(args.Path), "/")
	tree, err := r.ws.Tree(ctx, tc.TeacherID)
	if err != nil {
		return "", err
	}

	var lines []string
	queue := append(tree[:0:0], tree...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if prefix == "" || node.Path == prefix || strings.HasPrefix(node.Path, prefix+"/") {
			kind := "file"
			if node.IsDir() {
				kind = "dir"
			}
			lines = append(lines, kind+": "+node.Path)
		}
		queue = append(queue, node.Children...)
	}
	if len(lines) == 0 {
		return "No files found.", nil
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func addLineNumbers(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = fmt.Sprintf("%d: %s", i+1, line)
	}
	return strings.Join(lines, "\n")
}
