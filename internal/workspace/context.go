package workspace

import (
	"context"
	"strings"

	"lesson-assistant/internal/model"
)

// Section is one workspace file included in the prompt.
type Section struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// LoadedContext is what a chat turn knows about the teacher's workspace.
type LoadedContext struct {
	AssistantIdentity string
	Sections          []Section
	LoadedPaths       []string
	ClassRef          string
}

// ExtractClassRef scans user messages from newest to oldest and returns the
// last class reference (such as "3B") found in the first message that has one.
func ExtractClassRef(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != model.RoleUser {
			continue
		}
		matches := classRefPattern.FindAllStringSubmatch(messages[i].Content, -1)
		if len(matches) > 0 {
			return strings.ToUpper(matches[len(matches)-1][1])
		}
	}
	return ""
}

// LoadContext selects the identity and context files for a chat turn. An
// explicit classRef overrides detection from the messages.
func (s *Store) LoadContext(ctx context.Context, teacherID string, messages []model.ChatMessage, classRef string) (*LoadedContext, error) {
	if err := s.Seed(ctx, teacherID); err != nil {
		return nil, err
	}

	ref := strings.ToUpper(strings.TrimSpace(classRef))
	if ref == "" {
		ref = ExtractClassRef(messages)
	}

	out := &LoadedContext{AssistantIdentity: DefaultSoul, ClassRef: ref}
	if soul, ok := s.maybeRead(ctx, teacherID, SoulPath); ok {
		out.AssistantIdentity = soul
	}

	loaded := map[string]bool{}
	add := func(p, content string) {
		out.Sections = append(out.Sections, Section{Path: p, Content: content})
		if !loaded[p] {
			loaded[p] = true
			out.LoadedPaths = append(out.LoadedPaths, p)
		}
	}

	for _, p := range []string{"teacher.md", "pedagogy.md"} {
		if content, ok := s.maybeRead(ctx, teacherID, p); ok {
			add(p, content)
		}
	}

	if ref != "" {
		classPath := ClassProfilePath(ref)
		classContent, ok := s.maybeRead(ctx, teacherID, classPath)
		if ok {
			add(classPath, classContent)
		}

		paths, err := s.Paths(ctx, teacherID)
		if err != nil {
			return nil, err
		}
		for _, p := range relevantCurriculum(paths, messages, classContent) {
			if content, ok := s.maybeRead(ctx, teacherID, p); ok {
				add(p, content)
			}
		}
	}

	if !loaded[SoulPath] {
		out.LoadedPaths = append(out.LoadedPaths, SoulPath)
	}
	return out, nil
}

// maybeRead returns non-empty file content, or false.
func (s *Store) maybeRead(ctx context.Context, teacherID, p string) (string, bool) {
	content, err := s.ReadFile(ctx, teacherID, p)
	if err != nil || content == "" {
		return "", false
	}
	return content, true
}

// relevantCurriculum picks curriculum markdown files whose names mention a
// subject from the conversation or a word from the class profile. When none
// match, every curriculum file is used.
func relevantCurriculum(paths []string, messages []model.ChatMessage, classContent string) []string {
	var signals []string
	for _, token := range subjectTokens {
		for _, msg := range messages {
			if strings.Contains(strings.ToLower(msg.Content), token) {
				signals = append(signals, token)
				break
			}
		}
	}
	signals = append(signals, wordPattern.FindAllString(strings.ToLower(classContent), -1)...)

	var all, relevant []string
	for _, p := range paths {
		lower := strings.ToLower(p)
		if !strings.HasPrefix(p, "curriculum/") || !strings.HasSuffix(lower, ".md") || lower == "curriculum/readme.md" {
			continue
		}
		all = append(all, p)
		name := strings.ToLower(strings.TrimPrefix(p, "curriculum/"))
		for _, signal := range signals {
			if strings.Contains(name, signal) {
				relevant = append(relevant, p)
				break
			}
		}
	}
	if len(relevant) > 0 {
		return relevant
	}
	return all
}
