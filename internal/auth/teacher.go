package auth

import "regexp"

var teacherIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// Teachers decides which X-Teacher-Id values are accepted.
type Teachers struct {
	allowed map[string]bool
}

// NewTeachers builds an allowlist. Empty ids are ignored; an empty list
// accepts any well-formed id.
func NewTeachers(ids []string) *Teachers {
	allowed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			allowed[id] = true
		}
	}
	return &Teachers{allowed: allowed}
}

// IsValid reports whether id is well formed and, when an allowlist is
// configured, listed.
func (t *Teachers) IsValid(id string) bool {
	if !teacherIDPattern.MatchString(id) {
		return false
	}
	if t == nil || len(t.allowed) == 0 {
		return true
	}
	return t.allowed[id]
}
