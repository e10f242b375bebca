package skills

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultDescription = "No description provided."

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseFrontmatter reads the leading "---" delimited YAML block of a SKILL.md.
// Missing or malformed frontmatter yields zero values.
func parseFrontmatter(markdown string) frontmatter {
	text := strings.ReplaceAll(markdown, "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return frontmatter{}
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return frontmatter{}
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return frontmatter{}
	}
	fm.Name = strings.TrimSpace(fm.Name)
	fm.Description = strings.TrimSpace(fm.Description)
	return fm
}
