package adapter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	m "github.com/mouse-blink/traceview/internal/model"
)

const defaultSinkWidth = 80

// PlainSink writes unstyled report text to an io.Writer. Hints are
// ignored, which makes it the right sink for buffers, pipes and tests.
type PlainSink struct {
	out   io.Writer
	width int
}

// NewPlainSink constructs a PlainSink with the default column budget.
func NewPlainSink(out io.Writer) *PlainSink {
	return &PlainSink{out: out, width: defaultSinkWidth}
}

// NewPlainSinkWidth constructs a PlainSink with an explicit column budget.
func NewPlainSinkWidth(out io.Writer, width int) *PlainSink {
	if width <= 0 {
		width = defaultSinkWidth
	}

	return &PlainSink{out: out, width: width}
}

// Write emits text without a newline.
func (s *PlainSink) Write(text string) {
	_, _ = io.WriteString(s.out, text)
}

// Line emits one full line; hints are ignored.
func (s *PlainSink) Line(text string, _ ...m.LineHint) {
	_, _ = fmt.Fprintln(s.out, text)
}

// Sep emits a separator line built from sep, optionally titled.
func (s *PlainSink) Sep(sep string, title string) {
	_, _ = fmt.Fprintln(s.out, buildSep(sep, title, s.width))
}

// Width reports the column budget.
func (s *PlainSink) Width() int {
	return s.width
}

// StyledSink colorizes report lines with lipgloss based on their hints.
type StyledSink struct {
	out    io.Writer
	width  int
	err    lipgloss.Style
	note   lipgloss.Style
	bold   lipgloss.Style
	source lipgloss.Style
}

// NewStyledSink constructs a StyledSink, querying the terminal width when
// out is a real terminal and falling back to the default budget otherwise.
func NewStyledSink(out io.Writer) *StyledSink {
	width := defaultSinkWidth

	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	return &StyledSink{
		out:    out,
		width:  width,
		err:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		note:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		bold:   lipgloss.NewStyle().Bold(true),
		source: lipgloss.NewStyle(),
	}
}

// Write emits text without a newline and without styling.
func (s *StyledSink) Write(text string) {
	_, _ = io.WriteString(s.out, text)
}

// Line emits one line styled per the strongest hint present. Error
// outranks note, note outranks bold, bold outranks source.
func (s *StyledSink) Line(text string, hints ...m.LineHint) {
	styled := text

	switch strongestHint(hints) {
	case m.HintError:
		styled = s.err.Render(text)
	case m.HintNote:
		styled = s.note.Render(text)
	case m.HintBold:
		styled = s.bold.Render(text)
	case m.HintSource:
		styled = s.source.Render(text)
	case m.HintNone:
	}

	_, _ = fmt.Fprintln(s.out, styled)
}

func strongestHint(hints []m.LineHint) m.LineHint {
	best := m.HintNone

	for _, hint := range hints {
		if hintRank(hint) > hintRank(best) {
			best = hint
		}
	}

	return best
}

func hintRank(hint m.LineHint) int {
	switch hint {
	case m.HintError:
		return 4
	case m.HintNote:
		return 3
	case m.HintBold:
		return 2
	case m.HintSource:
		return 1
	case m.HintNone:
	}

	return 0
}

// Sep emits a separator line built from sep, optionally titled.
func (s *StyledSink) Sep(sep string, title string) {
	_, _ = fmt.Fprintln(s.out, buildSep(sep, title, s.width))
}

// Width reports the detected terminal width.
func (s *StyledSink) Width() int {
	return s.width
}

// buildSep repeats sep up to width columns, centering the title when one
// is given.
func buildSep(sep string, title string, width int) string {
	if sep == "" {
		sep = "-"
	}

	if title == "" {
		n := width / len(sep)
		if n < 1 {
			n = 1
		}

		return strings.TrimRight(strings.Repeat(sep, n), " ")
	}

	// Leave room for the title plus one space on each side.
	fill := width - len(title) - 2
	if fill < 2*len(sep) {
		fill = 2 * len(sep)
	}

	half := fill / 2 / len(sep)
	if half < 1 {
		half = 1
	}

	side := strings.Repeat(sep, half)

	return strings.TrimRight(fmt.Sprintf("%s %s %s", side, title, side), " ")
}
