// Package session persists chat sessions: their message history, the model
// they were last run with, and the task list the assistant maintains.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lesson-assistant/internal/model"
	"lesson-assistant/internal/storage"
	"lesson-assistant/internal/textnorm"
	"lesson-assistant/internal/tools"
)

const (
	defaultNamePrefix = "Session"
	maxNameLen        = 72
	maxPreviewLen     = 140
)

// ErrNotFound is returned for missing sessions and sessions owned by another teacher.
var ErrNotFound = errors.New("Session not found")

// Session is one persisted conversation.
type Session struct {
	ID        string              `json:"id"`
	TeacherID string              `json:"teacherId"`
	Name      string              `json:"name"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
	Messages  []model.ChatMessage `json:"messages"`
	Tasks     []tools.Task        `json:"tasks"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Summary is the list view of a session.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	MessageCount int       `json:"messageCount"`
	LastPreview  string    `json:"lastPreview,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store keeps sessions in sqlite. Messages and tasks are stored as JSON columns.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore runs the sessions migration against db.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := storage.Migrate(ctx, db,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			teacher_id TEXT NOT NULL,
			name TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			messages TEXT NOT NULL DEFAULT '[]',
			tasks TEXT NOT NULL DEFAULT '[]',
			created_at_utc TEXT NOT NULL,
			updated_at_utc TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_teacher ON sessions(teacher_id, updated_at_utc);",
	); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Create starts a session. Its name is derived from the first user message.
func (s *Store) Create(ctx context.Context, teacherID, provider, modelName string, messages []model.ChatMessage) (*Session, error) {
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		TeacherID: teacherID,
		Name:      s.nextName(ctx, teacherID, firstUserMessage(messages)),
		Provider:  provider,
		Model:     modelName,
		Messages:  messages,
		Tasks:     []tools.Task{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	msgJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions
		(id, teacher_id, name, provider, model, messages, tasks, created_at_utc, updated_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		sess.ID, teacherID, sess.Name, provider, modelName, string(msgJSON),
		storage.Timestamp(now), storage.Timestamp(now))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get loads a session owned by teacherID.
func (s *Store) Get(ctx context.Context, teacherID, id string) (*Session, error) {
	return s.get(ctx, s.db, teacherID, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) get(ctx context.Context, q queryer, teacherID, id string) (*Session, error) {
	var (
		sess                 Session
		msgJSON, taskJSON    string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, `SELECT id, teacher_id, name, provider, model, messages, tasks, created_at_utc, updated_at_utc
		FROM sessions WHERE id = ? AND teacher_id = ?`, id, teacherID).
		Scan(&sess.ID, &sess.TeacherID, &sess.Name, &sess.Provider, &sess.Model, &msgJSON, &taskJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(msgJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	if err := json.Unmarshal([]byte(taskJSON), &sess.Tasks); err != nil {
		return nil, fmt.Errorf("decode session tasks: %w", err)
	}
	if sess.Messages == nil {
		sess.Messages = []model.ChatMessage{}
	}
	if sess.Tasks == nil {
		sess.Tasks = []tools.Task{}
	}
	sess.CreatedAt = storage.ParseTimestamp(createdAt)
	sess.UpdatedAt = storage.ParseTimestamp(updatedAt)
	return &sess, nil
}

// List returns a teacher's sessions, most recently updated first.
func (s *Store) List(ctx context.Context, teacherID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, provider, model, messages, created_at_utc, updated_at_utc
		FROM sessions WHERE teacher_id = ? ORDER BY updated_at_utc DESC, created_at_utc DESC`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum                  Summary
			msgJSON              string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Provider, &sum.Model, &msgJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var messages []model.ChatMessage
		if err := json.Unmarshal([]byte(msgJSON), &messages); err != nil {
			return nil, fmt.Errorf("decode session messages: %w", err)
		}
		sum.MessageCount = len(messages)
		sum.LastPreview = Preview(messages)
		sum.CreatedAt = storage.ParseTimestamp(createdAt)
		sum.UpdatedAt = storage.ParseTimestamp(updatedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// AppendMessages adds messages to a session. Non-empty provider and model
// replace the stored ones.
func (s *Store) AppendMessages(ctx context.Context, teacherID, id string, messages []model.ChatMessage, provider, modelName string) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := s.get(ctx, tx, teacherID, id)
	if err != nil {
		return nil, err
	}
	sess.Messages = append(sess.Messages, messages...)
	if provider != "" {
		sess.Provider = provider
	}
	if modelName != "" {
		sess.Model = modelName
	}
	sess.UpdatedAt = s.now().UTC()

	msgJSON, err := json.Marshal(sess.Messages)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET messages = ?, provider = ?, model = ?, updated_at_utc = ? WHERE id = ? AND teacher_id = ?",
		string(msgJSON), sess.Provider, sess.Model, storage.Timestamp(sess.UpdatedAt), id, teacherID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session owned by teacherID.
func (s *Store) Delete(ctx context.Context, teacherID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ? AND teacher_id = ?", id, teacherID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Tasks returns the session's task list.
func (s *Store) Tasks(ctx context.Context, teacherID, id string) ([]tools.Task, error) {
	sess, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	return sess.Tasks, nil
}

// SetTasks replaces the session's task list.
func (s *Store) SetTasks(ctx context.Context, teacherID, id string, tasks []tools.Task) error {
	if tasks == nil {
		tasks = []tools.Task{}
	}
	taskJSON, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET tasks = ?, updated_at_utc = ? WHERE id = ? AND teacher_id = ?",
		string(taskJSON), storage.Timestamp(s.now()), id, teacherID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) nextName(ctx context.Context, teacherID, firstMessage string) string {
	if name := textnorm.Truncate(firstMessage, maxNameLen, 16, ""); name != "" {
		return name
	}
	var count int
	_ = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE teacher_id = ?", teacherID).Scan(&count)
	return fmt.Sprintf("%s %d", defaultNamePrefix, count+1)
}

func firstUserMessage(messages []model.ChatMessage) string {
	for _, msg := range messages {
		if msg.Role == model.RoleUser {
			return msg.Content
		}
	}
	return ""
}

// Preview returns a shortened form of the last non-blank assistant message.
func Preview(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != model.RoleAssistant {
			continue
		}
		if preview := textnorm.Truncate(messages[i].Content, maxPreviewLen, maxPreviewLen/2, "…"); preview != "" {
			return preview
		}
	}
	return ""
}
