package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type readSkillArgs struct {
	Target string `json:"target" jsonschema:"description=Skill name or skill-name/relative/file.md"`
}

func (r *Registry) readSkill(_ context.Context, _ Context, args readSkillArgs) (string, error) {
	target := strings.TrimSpace(args.Target)
	if target == "" {
		return "", errors.New("target is required")
	}
	doc, err := r.skills.Read(target)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Skill: %s\nTier: %d\n\n%s", doc.Path, doc.Tier, doc.Content), nil
}

// SkillName returns the skill a read_skill target refers to.
func SkillName(target string) string {
	name, _, _ := strings.Cut(strings.TrimLeft(strings.TrimSpace(target), "/"), "/")
	return name
}
