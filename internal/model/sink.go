package model

// LineHint carries styling intent for a single output line. Sinks that
// cannot style output are free to ignore hints entirely.
type LineHint int

// Available LineHint values.
const (
	HintNone LineHint = iota
	// HintError marks failure summary lines (the "E" marked lines).
	HintError
	// HintNote marks explanatory notes such as causal-chain transitions.
	HintNote
	// HintBold marks emphasized fragments such as file paths.
	HintBold
	// HintSource marks plain source-context lines eligible for highlighting.
	HintSource
)

// Sink is the text output capability report nodes serialize into.
// Implementations may colorize based on hints (terminal sinks) or emit
// plain text (buffers, log files).
type Sink interface {
	// Write emits text without a trailing newline.
	Write(text string)
	// Line emits one full line, optionally styled per the hints.
	Line(text string, hints ...LineHint)
	// Sep emits a horizontal separator line, optionally titled, built by
	// repeating sep up to the sink's width.
	Sep(sep string, title string)
	// Width reports the column budget available for wrapping decisions.
	Width() int
}
