package workspace

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSummary counts changed lines between two versions of a file.
type DiffSummary struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Changed reports whether any line differs.
func (d DiffSummary) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// SummarizeDiff compares before and after line by line.
func SummarizeDiff(before, after string) DiffSummary {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out DiffSummary
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			out.Added += n
		case diffmatchpatch.DiffDelete:
			out.Removed += n
		}
	}
	return out
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return len(lines)
}
