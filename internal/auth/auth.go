// Package auth provides bearer token checks and teacher context management.
package auth

import (
	"context"
	"crypto/subtle"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const teacherContextKey contextKey = "teacher"

// ValidateToken performs constant-time comparison of the provided token
// against the expected token to prevent timing attacks.
func ValidateToken(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// TeacherFromContext retrieves the teacher id from the context.
// Returns empty string if no teacher is set.
func TeacherFromContext(ctx context.Context) string {
	teacher, ok := ctx.Value(teacherContextKey).(string)
	if !ok {
		return ""
	}
	return teacher
}

// WithTeacher returns a new context with the teacher id set.
func WithTeacher(ctx context.Context, teacherID string) context.Context {
	return context.WithValue(ctx, teacherContextKey, teacherID)
}
