package textnorm

import "testing"

func TestTrimLeadingBlankLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no prefix", in: "Hello", want: "Hello"},
		{name: "single newline", in: "\nHello", want: "Hello"},
		{name: "multiple blank lines", in: "\n \n\t\nHello", want: "Hello"},
		{name: "crlf blank lines", in: " \r\n\r\nHello", want: "Hello"},
		{name: "preserve first-line indentation", in: "  Hello", want: "  Hello"},
		{name: "keeps later blank lines", in: "\nA\n\nB", want: "A\n\nB"},
		{name: "whitespace only", in: " \n\t", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimLeadingBlankLines(tt.in); got != tt.want {
				t.Fatalf("TrimLeadingBlankLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLeadingBlankLineTrimmerPush(t *testing.T) {
	trimmer := LeadingBlankLineTrimmer{}
	deltas := []string{"\n", " \n", "Hello", "\n\n world"}
	want := []string{"", "", "Hello", "\n\n world"}

	for i := range deltas {
		if got := trimmer.Push(deltas[i]); got != want[i] {
			t.Fatalf("delta %d => %q, want %q", i, got, want[i])
		}
	}
}

func TestCollapse(t *testing.T) {
	if got := Collapse("  plan\n\ta   lesson "); got != "plan a lesson" {
		t.Fatalf("Collapse() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		max    int
		minCut int
		want   string
	}{
		{name: "short", in: "short text", max: 20, minCut: 5, want: "short text"},
		{name: "cut at space", in: "alpha beta gamma delta", max: 13, minCut: 5, want: "alpha beta…"},
		{name: "hard cut when space too early", in: "ab cdefghijklmnop", max: 8, minCut: 5, want: "ab cdefg…"},
		{name: "runes counted", in: "ééééé ééééé", max: 7, minCut: 3, want: "ééééé…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max, tt.minCut, "…"); got != tt.want {
				t.Fatalf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}
