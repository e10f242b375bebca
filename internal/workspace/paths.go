// Package workspace stores each teacher's virtual document tree and loads
// the parts of it that are relevant to a chat turn.
package workspace

import (
	"errors"
	"path"
	"strings"
)

// Workspace errors. Messages are shown to the model and to API clients verbatim.
var (
	ErrInvalidPath  = errors.New("Invalid workspace path")
	ErrNotFound     = errors.New("Workspace file not found")
	ErrPathNotFound = errors.New("Workspace path not found")
	ErrTargetExists = errors.New("Target path already exists")
	ErrMoveIntoSelf = errors.New("Cannot move a folder into itself")
	ErrDeleteSoul   = errors.New("Cannot delete soul.md")
	ErrRenameSoul   = errors.New("Cannot rename soul.md")
	ErrEmptyTeacher = errors.New("teacher id is required")
)

// NormalizePath cleans a workspace-relative path. Leading slashes are
// stripped since the workspace is its own root; traversal is rejected.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if strings.Contains(p, "..") {
		return "", ErrInvalidPath
	}
	cleaned := strings.TrimLeft(path.Clean("/"+p), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// dirPrefix returns p with exactly one trailing slash.
func dirPrefix(p string) string {
	return strings.TrimRight(p, "/") + "/"
}
