package adapter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Highlighter styles raw source lines for display. Implementations must
// return the input unchanged when styling is unavailable, so report
// generation never depends on a capable terminal.
type Highlighter interface {
	Highlight(lines []string) []string
}

// PassthroughHighlighter returns source lines untouched.
type PassthroughHighlighter struct{}

// NewPassthroughHighlighter constructs a PassthroughHighlighter.
func NewPassthroughHighlighter() *PassthroughHighlighter {
	return &PassthroughHighlighter{}
}

// Highlight returns the input unchanged.
func (h *PassthroughHighlighter) Highlight(lines []string) []string {
	return lines
}

// LipglossHighlighter applies lightweight Go-aware styling: keywords are
// emphasized and comments dimmed. It is deliberately line-based; a wrong
// guess degrades to plain text, never to an error.
type LipglossHighlighter struct {
	keyword lipgloss.Style
	comment lipgloss.Style
}

// NewLipglossHighlighter constructs a LipglossHighlighter.
func NewLipglossHighlighter() *LipglossHighlighter {
	return &LipglossHighlighter{
		keyword: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		comment: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

var goKeywords = []string{
	"func", "return", "if", "else", "for", "range", "switch", "case",
	"default", "defer", "go", "select", "var", "const", "type", "struct",
	"interface", "map", "chan", "package", "import", "break", "continue",
	"fallthrough", "goto",
}

// Highlight styles each line independently.
func (h *LipglossHighlighter) Highlight(lines []string) []string {
	out := make([]string, len(lines))

	for i, line := range lines {
		out[i] = h.highlightLine(line)
	}

	return out
}

func (h *LipglossHighlighter) highlightLine(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return h.highlightCode(line[:idx]) + h.comment.Render(line[idx:])
	}

	return h.highlightCode(line)
}

func (h *LipglossHighlighter) highlightCode(code string) string {
	fields := strings.Split(code, " ")

	for i, field := range fields {
		for _, kw := range goKeywords {
			if field == kw {
				fields[i] = h.keyword.Render(field)

				break
			}
		}
	}

	return strings.Join(fields, " ")
}
