// Package api provides HTTP handlers and middleware for the assistant server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lesson-assistant/internal/chat"
	"lesson-assistant/internal/model"
	"lesson-assistant/internal/session"
	"lesson-assistant/internal/skills"
	"lesson-assistant/internal/workspace"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// SuccessResponse represents a success response body.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Detail: message})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
}

// writeBadRequest writes a 400 Bad Request error.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeUnauthorized writes a 401 Unauthorized error.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

// statusFor maps domain errors to HTTP status codes. Unknown errors get fallback.
func statusFor(err error, fallback int) int {
	var rateLimited *chat.RateLimitError
	switch {
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case model.IsConfigurationError(err),
		errors.Is(err, model.ErrUnsupportedProvider),
		errors.Is(err, chat.ErrMessagesRequired),
		errors.Is(err, chat.ErrModelRequired),
		errors.Is(err, workspace.ErrInvalidPath),
		errors.Is(err, workspace.ErrMoveIntoSelf),
		errors.Is(err, workspace.ErrDeleteSoul),
		errors.Is(err, workspace.ErrRenameSoul),
		errors.Is(err, skills.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, workspace.ErrPathNotFound),
		errors.Is(err, skills.ErrNotFound),
		errors.Is(err, skills.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrSessionBusy),
		errors.Is(err, workspace.ErrTargetExists):
		return http.StatusConflict
	default:
		return fallback
	}
}

// writeServiceError renders err with its mapped status and a Retry-After
// header for rate limits.
func writeServiceError(w http.ResponseWriter, err error, fallback int) {
	var rateLimited *chat.RateLimitError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfter))
	}
	writeError(w, statusFor(err, fallback), err.Error())
}

// ndjsonWriter streams events as newline-delimited JSON. Headers are sent
// with the first event so request errors can still use a normal status.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	broken  bool
}

func (n *ndjsonWriter) write(v any) {
	if n.broken {
		return
	}
	if !n.started {
		n.w.Header().Set("Content-Type", "application/x-ndjson")
		n.w.Header().Set("Cache-Control", "no-cache")
		n.w.Header().Set("Connection", "keep-alive")
		n.w.WriteHeader(http.StatusOK)
		n.started = true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := n.w.Write(append(data, '\n')); err != nil {
		n.broken = true
		return
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
}
