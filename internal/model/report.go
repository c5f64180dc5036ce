package model

import (
	"fmt"
	"strings"
)

// ReportNode is the closed set of immutable report-tree nodes. Every
// variant serializes itself to a Sink; parent nodes hold children by
// value and never mutate them after construction.
type ReportNode interface {
	WriteTo(sink Sink)

	reportNode()
}

// FailMarkerPrefix prefixes failure summary lines inside entry bodies.
const FailMarkerPrefix = "E   "

// FlowMarker is the glyph placed on the faulting line of a statement.
const FlowMarker = ">"

// EntrySep separates consecutive long-style entries.
const EntrySep = "_ "

// LocationReport points at one file position with a short message,
// using the path:line format most editors understand.
type LocationReport struct {
	Path    Path
	Line    int // 1-based; 0 means unknown
	Message string
}

func (r LocationReport) reportNode() {}

// WriteTo emits "path:line: message", eliding everything past the first
// newline of the message.
func (r LocationReport) WriteTo(sink Sink) {
	sink.Write(string(r.Path))

	if r.Line > 0 {
		sink.Line(fmt.Sprintf(":%d: %s", r.Line, r.shortMessage()), HintBold)
	} else {
		sink.Line(": "+r.shortMessage(), HintBold)
	}
}

func (r LocationReport) shortMessage() string {
	msg := r.Message
	if i := strings.IndexByte(msg, '\n'); i != -1 {
		if i > 0 && msg[i-1] == '\r' {
			i--
		}
		msg = msg[:i] + "..."
	}

	return msg
}

// String renders the location without a sink, for summaries and tests.
func (r LocationReport) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", r.Path, r.Line, r.shortMessage())
	}

	return fmt.Sprintf("%s: %s", r.Path, r.shortMessage())
}

// LocalsReport carries pre-formatted "name = value" lines for one entry.
type LocalsReport struct {
	Lines []string
}

func (r LocalsReport) reportNode() {}

// WriteTo emits every locals line as-is.
func (r LocalsReport) WriteTo(sink Sink) {
	r.writeIndented(sink, "")
}

func (r LocalsReport) writeIndented(sink Sink, indent string) {
	for _, line := range r.Lines {
		sink.Line(indent + line)
	}
}

// ArgPair is one rendered argument binding.
type ArgPair struct {
	Name  string
	Value string
}

// ArgsReport lists the argument values at an entry's call site. Pairs
// are packed onto as few lines as the sink width allows.
type ArgsReport struct {
	Pairs []ArgPair
}

func (r ArgsReport) reportNode() {}

// WriteTo wraps "name = value" pairs to the sink width, ending with a
// blank line when anything was written.
func (r ArgsReport) WriteTo(sink Sink) {
	if len(r.Pairs) == 0 {
		return
	}

	linesofar := ""

	for _, pair := range r.Pairs {
		ns := pair.Name + " = " + pair.Value
		if len(ns)+len(linesofar)+2 > sink.Width() {
			if linesofar != "" {
				sink.Line(linesofar)
			}

			linesofar = ns

			continue
		}

		if linesofar != "" {
			linesofar += ", " + ns
		} else {
			linesofar = ns
		}
	}

	if linesofar != "" {
		sink.Line(linesofar)
	}

	sink.Line("")
}

// EntryReport renders one call-chain level. SourceLines already carry
// their markers: four-space indents for context lines, FlowMarker on the
// faulting line, FailMarkerPrefix on failure summary lines.
type EntryReport struct {
	SourceLines []string
	Args        *ArgsReport
	Locals      *LocalsReport
	Location    *LocationReport
	Style       Style
}

func (r EntryReport) reportNode() {}

// WriteTo serializes the entry under its own style.
func (r EntryReport) WriteTo(sink Sink) {
	switch r.Style {
	case StyleLine:
		if r.Location != nil {
			r.Location.WriteTo(sink)
		}
	case StyleShort:
		if r.Location != nil {
			r.Location.WriteTo(sink)
		}

		r.writeSourceLines(sink)

		if r.Locals != nil {
			r.Locals.writeIndented(sink, strings.Repeat(" ", 8))
		}
	case StyleLong:
		if r.Args != nil {
			r.Args.WriteTo(sink)
		}

		r.writeSourceLines(sink)

		if r.Locals != nil {
			sink.Line("")
			r.Locals.WriteTo(sink)
		}

		if r.Location != nil {
			if len(r.SourceLines) > 0 {
				sink.Line("")
			}

			r.Location.WriteTo(sink)
		}
	default:
		r.writeSourceLines(sink)
	}
}

func (r EntryReport) writeSourceLines(sink Sink) {
	for _, line := range r.SourceLines {
		if strings.HasPrefix(line, FailMarkerPrefix) || line == strings.TrimRight(FailMarkerPrefix, " ") {
			sink.Line(line, HintError)
		} else {
			sink.Line(line, HintSource)
		}
	}
}

// TracebackReport is one rendered call chain: entries outermost first,
// optionally followed by an explanatory note (recursion truncation).
type TracebackReport struct {
	Entries   []EntryReport
	ExtraNote string
	Style     Style
}

func (r TracebackReport) reportNode() {}

// WriteTo emits all entries, separating long-style neighbours with the
// entry separator the way terminal reports read best.
func (r TracebackReport) WriteTo(sink Sink) {
	for i, entry := range r.Entries {
		if entry.Style == StyleLong {
			sink.Line("")
		}

		entry.WriteTo(sink)

		if i < len(r.Entries)-1 {
			next := r.Entries[i+1]
			if entry.Style == StyleLong || (entry.Style == StyleShort && next.Style == StyleLong) {
				sink.Sep(EntrySep, "")
			}
		}
	}

	if r.ExtraNote != "" {
		sink.Line(r.ExtraNote, HintNote)
	}
}

// NativeTracebackReport replays the runtime's own raw chain text.
type NativeTracebackReport struct {
	RawLines []string
}

func (r NativeTracebackReport) reportNode() {}

// WriteTo emits the raw lines verbatim.
func (r NativeTracebackReport) WriteTo(sink Sink) {
	for _, line := range r.RawLines {
		sink.Line(line)
	}
}

// ChainLink pairs one failure's traceback with its crash location and
// the transition note leading to the next (newer) failure in the chain.
type ChainLink struct {
	// Trace is either a TracebackReport or a NativeTracebackReport.
	Trace ReportNode
	// Location is the crash location, nil when the failure carried no chain.
	Location *LocationReport
	// Note explains the causal transition to the following link.
	Note string
}

// Section is an extra titled block appended after the chain.
type Section struct {
	Name    string
	Content string
	Sep     string
}

// ChainReport is the ordered causal chain, oldest failure first, plus
// any extra sections appended by the caller.
type ChainReport struct {
	Links    []ChainLink
	Sections []Section
}

func (r ChainReport) reportNode() {}

// AddSection appends a titled content block rendered after the chain.
func (r *ChainReport) AddSection(name, content, sep string) {
	if sep == "" {
		sep = "-"
	}

	r.Sections = append(r.Sections, Section{Name: name, Content: content, Sep: sep})
}

// CrashLocation returns the newest failure's crash location, if known.
func (r ChainReport) CrashLocation() *LocationReport {
	if len(r.Links) == 0 {
		return nil
	}

	return r.Links[len(r.Links)-1].Location
}

// WriteTo emits every link oldest-first with transition notes between
// them, then the extra sections.
func (r ChainReport) WriteTo(sink Sink) {
	for _, link := range r.Links {
		if link.Trace != nil {
			link.Trace.WriteTo(sink)
		} else if link.Location != nil {
			link.Location.WriteTo(sink)
		}

		if link.Note != "" {
			sink.Line("")
			sink.Line(link.Note, HintNote)
			sink.Line("")
		}
	}

	for _, section := range r.Sections {
		sink.Sep(section.Sep, section.Name)
		sink.Line(section.Content)
	}
}
