package api

import (
	"encoding/json"
	"net/http"

	"lesson-assistant/internal/chat"
)

// handleChat runs a chat turn. With "stream": true the response is NDJSON events.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	teacher, ok := requireTeacher(w, r)
	if !ok {
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if !req.Stream {
		resp, err := s.chat.Handle(r.Context(), teacher, req, nil)
		if err != nil {
			writeServiceError(w, err, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	out := &ndjsonWriter{w: w}
	out.flusher, _ = w.(http.Flusher)
	_, err := s.chat.Handle(r.Context(), teacher, req, func(ev chat.Event) {
		out.write(ev)
	})
	if err != nil && !out.started {
		writeServiceError(w, err, http.StatusBadGateway)
	}
}
