package api

import "net/http"

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTeacher(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skills": s.skills.List()})
}

func (s *Server) handleReadSkill(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTeacher(w, r); !ok {
		return
	}
	doc, err := s.skills.Read(r.URL.Query().Get("target"))
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
