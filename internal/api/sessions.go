package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lesson-assistant/internal/model"
)

// CreateSessionRequest represents a request to start a session.
type CreateSessionRequest struct {
	Provider string              `json:"provider"`
	Model    string              `json:"model"`
	Messages []model.ChatMessage `json:"messages"`
}

// AppendMessagesRequest represents a request to add messages to a session.
type AppendMessagesRequest struct {
	Messages []model.ChatMessage `json:"messages"`
	Provider string              `json:"provider,omitempty"`
	Model    string              `json:"model,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	list, err := s.sessions.List(r.Context(), teacher)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	provider, err := model.ValidateProvider(req.Provider)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Model == "" {
		writeBadRequest(w, "Model is required")
		return
	}
	sess, err := s.sessions.Create(r.Context(), teacher, string(provider), req.Model, model.StripSystem(req.Messages))
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.Get(r.Context(), teacher, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), teacher, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeSuccess(w, "Session deleted")
}

func (s *Server) handleAppendSessionMessages(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}
	var req AppendMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "Messages are required")
		return
	}
	if req.Provider != "" {
		if _, err := model.ValidateProvider(req.Provider); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}
	sess, err := s.sessions.AppendMessages(r.Context(), teacher, chi.URLParam(r, "id"), model.StripSystem(req.Messages), req.Provider, req.Model)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleExportSessions writes all sessions as markdown into the teacher's workspace.
func (s *Server) handleExportSessions(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.seeded(w, r)
	if !ok {
		return
	}
	exported, err := s.sessions.ExportMarkdown(r.Context(), teacher, s.workspace)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, exported)
}
