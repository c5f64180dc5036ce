// Package domain implements failure capture: statement-range resolution,
// call-chain modelling, captured outcomes and report rendering.
package domain

import (
	"fmt"

	m "github.com/mouse-blink/traceview/internal/model"
)

// AlreadyFilledFault reports that Fill was called on an outcome that
// already holds failure data. Programmer error; propagates to the caller.
type AlreadyFilledFault struct{}

func (AlreadyFilledFault) Error() string {
	return "outcome was already filled"
}

// NoActiveFailureFault reports a capture attempt with no in-flight
// failure. Programmer error; propagates to the caller.
type NoActiveFailureFault struct{}

func (NoActiveFailureFault) Error() string {
	return "no active failure to capture"
}

// UnfilledFault reports an operation that requires a filled outcome,
// such as rendering a placeholder before Fill.
type UnfilledFault struct {
	Op string
}

func (f UnfilledFault) Error() string {
	return fmt.Sprintf("%s requires a filled outcome", f.Op)
}

// MatchFault reports that a pattern did not match the failure text. It
// carries an escape hint when the pattern equals the text verbatim, which
// usually means the caller forgot to escape regex metacharacters.
type MatchFault struct {
	Pattern string
	Text    string
}

func (f MatchFault) Error() string {
	hint := ""
	if f.Pattern == f.Text {
		hint = " Did you mean to escape the pattern?"
	}

	return fmt.Sprintf("pattern %q does not match %q.%s", f.Pattern, f.Text, hint)
}

// SyntaxFault reports source that could not be parsed for statement-range
// resolution. Recovered locally by falling back to a single-line range.
type SyntaxFault struct {
	Path m.Path
	Err  error
}

func (f SyntaxFault) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", f.Path, f.Err)
}

func (f SyntaxFault) Unwrap() error {
	return f.Err
}

// RecursionDetectionFault reports that comparing local bindings during
// loop detection itself faulted. Recovered locally with a truncated
// report; never propagates.
type RecursionDetectionFault struct {
	Kind    string
	Message string
}

func (f RecursionDetectionFault) Error() string {
	return fmt.Sprintf("recursion detection failed: %s: %s", f.Kind, f.Message)
}
