package controller

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

// TUI implements UI with lipgloss styling, paging long reports through
// an interactive Bubble Tea viewport.
type TUI struct {
	output      io.Writer
	highlighter adapter.Highlighter

	lineno  lipgloss.Style
	marker  lipgloss.Style
	path    lipgloss.Style
	failure lipgloss.Style
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{
		output:      output,
		highlighter: adapter.NewLipglossHighlighter(),
		lineno:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		marker:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		path:        lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		failure:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

// Close finalizes the UI.
func (t *TUI) Close() {

}

// ShowReport renders the report styled, paging it when it is taller than
// the terminal.
func (t *TUI) ShowReport(report *m.ChainReport) error {
	var buf bytes.Buffer

	sink := adapter.NewStyledSink(&buf)
	report.WriteTo(sink)

	content := buf.String()

	if height, ok := t.terminalHeight(); ok && strings.Count(content, "\n") > height {
		return t.page(content)
	}

	_, err := io.WriteString(t.output, content)

	return err
}

// ShowExcerpt prints highlighted, numbered source lines with the fault
// line marked.
func (t *TUI) ShowExcerpt(path m.Path, firstLine int, lines []string, faultLine int) error {
	_, _ = fmt.Fprintln(t.output, t.path.Render(string(path)))

	highlighted := t.highlighter.Highlight(lines)

	for i, line := range highlighted {
		lineno := t.lineno.Render(fmt.Sprintf("%4d |", firstLine+i+1))
		marker := " "

		if firstLine+i == faultLine {
			marker = t.marker.Render(m.FlowMarker)
		}

		_, _ = fmt.Fprintf(t.output, "%s %s %s\n", marker, lineno, line)
	}

	return nil
}

// ShowChainSummary prints one styled line per causal link, oldest first.
func (t *TUI) ShowChainSummary(rows []ChainRow) error {
	for i, row := range rows {
		failure := row.Kind
		if row.Message != "" {
			failure += ": " + row.Message
		}

		_, _ = fmt.Fprintf(t.output, "%d. %s:%d %s\n",
			i+1,
			t.path.Render(row.Path),
			row.Line,
			t.failure.Render(failure),
		)
	}

	_, _ = fmt.Fprintf(t.output, "Chain of %d failure(s)\n", len(rows))

	return nil
}

// page runs the interactive viewport until the user quits.
func (t *TUI) page(content string) error {
	program := tea.NewProgram(
		newPagerModel(content),
		tea.WithOutput(t.output),
	)

	_, err := program.Run()

	return err
}

func (t *TUI) terminalHeight() (int, bool) {
	f, ok := t.output.(*os.File)
	if !ok {
		return 0, false
	}

	_, h, err := term.GetSize(int(f.Fd()))
	if err != nil || h <= 0 {
		return 0, false
	}

	return h, true
}
