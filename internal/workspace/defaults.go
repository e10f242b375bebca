package workspace

import (
	"fmt"
	"regexp"
)

// SoulPath is the protected identity file.
const SoulPath = "soul.md"

// DefaultSoul is the identity used when soul.md is missing.
const DefaultSoul = `# Assistant Identity

You are a practical lesson-planning assistant.

## Working stance
- Draft, do not decide for the teacher.
- Be explicit about tradeoffs and assumptions.
- Do not claim curriculum alignment without evidence from workspace files.
`

const defaultTeacher = `# Teacher Profile

- Name:
- School:
- Subject specialism:
- Year groups taught:
`

const defaultPedagogy = `# Pedagogy Preferences

- Preferred lesson structure:
- Differentiation approaches:
- Assessment style:
- Classroom routines:
`

const defaultCurriculum = `# Curriculum Notes

Add curriculum references and copied excerpts here.
`

const defaultClass = `# Class Profile

- Size:
- Stage:
- Needs:
- Prior learning:
`

// File is a path and its content.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DefaultFiles are seeded into every new workspace.
var DefaultFiles = []File{
	{Path: SoulPath, Content: DefaultSoul},
	{Path: "teacher.md", Content: defaultTeacher},
	{Path: "pedagogy.md", Content: defaultPedagogy},
	{Path: "curriculum/README.md", Content: defaultCurriculum},
	{Path: "classes/README.md", Content: defaultClass},
}

var (
	classRefPattern  = regexp.MustCompile(`\b([1-6][A-Za-z])\b`)
	classFilePattern = regexp.MustCompile(`(?i)^classes/([^/]+)/CLASS\.md$`)
	wordPattern      = regexp.MustCompile(`[a-z]+`)
)

var subjectTokens = []string{
	"computing", "science", "math", "mathematics", "history", "english",
	"biology", "chemistry", "physics", "geography", "music", "drama", "art",
}

// ClassProfilePath returns the profile file for a class reference.
func ClassProfilePath(classRef string) string {
	return fmt.Sprintf("classes/%s/CLASS.md", classRef)
}
