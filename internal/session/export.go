package session

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"lesson-assistant/internal/model"
)

const exportRoot = "exports/sessions"

var multiDash = regexp.MustCompile(`-+`)

// FileWriter is where exports are written, typically the teacher's workspace.
type FileWriter interface {
	WriteFile(ctx context.Context, teacherID, p, content string) error
}

// MarkdownExport describes one export batch.
type MarkdownExport struct {
	Directory string   `json:"directory"`
	Files     []string `json:"files"`
}

// ExportMarkdown renders every session of teacherID as markdown and writes
// them, plus a README index, under exports/sessions/<timestamp>/.
func (s *Store) ExportMarkdown(ctx context.Context, teacherID string, out FileWriter) (*MarkdownExport, error) {
	summaries, err := s.List(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	baseDir := path.Join(exportRoot, now.Format("2006-01-02_15-04-05"))

	var index strings.Builder
	index.WriteString("# Session export\n\n")
	fmt.Fprintf(&index, "- Exported at (UTC): %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&index, "- Sessions: %d\n\n", len(summaries))

	files := make([]string, 0, len(summaries)+1)
	for i, summary := range summaries {
		sess, err := s.Get(ctx, teacherID, summary.ID)
		if err != nil {
			return nil, err
		}
		filename := exportFilename(i+1, sess.Name, sess.ID)
		relPath := path.Join(baseDir, filename)
		if err := out.WriteFile(ctx, teacherID, relPath, RenderMarkdown(sess)); err != nil {
			return nil, err
		}
		files = append(files, relPath)
		fmt.Fprintf(&index, "- [%s](%s)\n", sess.Name, filename)
	}

	indexPath := path.Join(baseDir, "README.md")
	if err := out.WriteFile(ctx, teacherID, indexPath, index.String()); err != nil {
		return nil, err
	}
	return &MarkdownExport{Directory: baseDir, Files: append([]string{indexPath}, files...)}, nil
}

// RenderMarkdown renders the user and assistant turns of a session. Tool
// traffic is left out.
func RenderMarkdown(sess *Session) string {
	var b strings.Builder

	name := strings.TrimSpace(sess.Name)
	if name == "" {
		name = defaultNamePrefix
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "- Session ID: `%s`\n", sess.ID)
	fmt.Fprintf(&b, "- Model: %s/%s\n", sess.Provider, sess.Model)
	fmt.Fprintf(&b, "- Created (UTC): %s\n", sess.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Last used (UTC): %s\n", sess.UpdatedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n## Conversation\n\n")

	count := 0
	for _, msg := range sess.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case model.RoleUser:
			b.WriteString("### Teacher\n\n")
		case model.RoleAssistant:
			b.WriteString("### Assistant\n\n")
		default:
			continue
		}
		count++
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	if count == 0 {
		b.WriteString("_No teacher/assistant messages in this session._\n")
	}

	if len(sess.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		for _, task := range sess.Tasks {
			mark := " "
			if task.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s\n", mark, task.Text)
		}
	}
	return b.String()
}

func exportFilename(position int, name, id string) string {
	base := slugify(name)
	if base == "" {
		base = slugify(id)
	}
	if base == "" {
		base = fmt.Sprintf("session-%d", position)
	}
	return fmt.Sprintf("%02d-%s.md", position, base)
}

func slugify(input string) string {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return ""
	}

	var b strings.Builder
	for _, ch := range input {
		switch {
		case ch >= 'a' && ch <= 'z':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == ' ' || ch == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(multiDash.ReplaceAllString(b.String(), "-"), "-")
}
