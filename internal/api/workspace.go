package api

import (
	"encoding/json"
	"net/http"

	"lesson-assistant/internal/workspace"
)

// SaveWorkspaceFileRequest represents a request to write a workspace file.
type SaveWorkspaceFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// RenameWorkspacePathRequest represents a file or folder move.
type RenameWorkspacePathRequest struct {
	FromPath string `json:"fromPath"`
	ToPath   string `json:"toPath"`
}

// seeded resolves the teacher and makes sure their default files exist.
func (s *Server) seeded(w http.ResponseWriter, r *http.Request) (string, bool) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return "", false
	}
	if err := s.workspace.Seed(r.Context(), teacher); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return "", false
	}
	return teacher, true
}

func (s *Server) handleWorkspaceTree(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	tree, err := s.workspace.Tree(r.Context(), teacher)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	if tree == nil {
		tree = []workspace.Node{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

func (s *Server) handleReadWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	p := r.URL.Query().Get("path")
	if p == "" {
		writeBadRequest(w, "Path is required")
		return
	}
	content, err := s.workspace.ReadFile(r.Context(), teacher, p)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	normalized, _ := workspace.NormalizePath(p)
	writeJSON(w, http.StatusOK, map[string]string{
		"path":    normalized,
		"content": content,
	})
}

func (s *Server) handleSaveWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	var req SaveWorkspaceFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Path == "" {
		writeBadRequest(w, "Path is required")
		return
	}
	diff, err := s.workspace.Save(r.Context(), teacher, req.Path, req.Content)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	normalized, _ := workspace.NormalizePath(req.Path)
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    normalized,
		"added":   diff.Added,
		"removed": diff.Removed,
	})
}

func (s *Server) handleDeleteWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	p := r.URL.Query().Get("path")
	if p == "" {
		writeBadRequest(w, "Path is required")
		return
	}
	if err := s.workspace.DeleteFile(r.Context(), teacher, p); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeSuccess(w, "File deleted")
}

func (s *Server) handleRenameWorkspacePath(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	var req RenameWorkspacePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	result, err := s.workspace.Rename(r.Context(), teacher, req.FromPath, req.ToPath)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	refs, err := s.workspace.ListClassRefs(r.Context(), teacher)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": refs})
}
