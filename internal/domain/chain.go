package domain

import (
	"fmt"
	"runtime"
	"strings"

	m "github.com/mouse-blink/traceview/internal/model"
)

// FrameSnapshot is a point-in-time view of one call-stack level: the
// routine it executes, the current 0-based line, and the binding
// snapshots deposited by the call site.
type FrameSnapshot struct {
	Unit    *SourceUnit
	Line    int
	Locals  Bindings
	Args    Bindings
	Globals Bindings

	reg *SourceRegistry
}

// RelLine is the line relative to the routine's first line.
func (f *FrameSnapshot) RelLine() int {
	return f.Line - f.Unit.FirstLine
}

// StatementRange resolves the statement span containing the current
// line; cached per (unit, line) by the registry.
func (f *FrameSnapshot) StatementRange() (int, int) {
	return f.reg.StatementRange(f.Unit, f.Line)
}

// Statement returns the raw source lines of the current statement, or
// the placeholder when the source is unavailable.
func (f *FrameSnapshot) Statement() []string {
	text := f.reg.Load(f.Unit.Path)
	start, end := f.StatementRange()

	lines := text.Slice(start, end)
	if len(lines) == 0 {
		return []string{placeholderLine}
	}

	return lines
}

// ChainEntry is one node of a captured call chain: a frame snapshot plus
// an optional display-style override and the entry's visibility.
type ChainEntry struct {
	frame   *FrameSnapshot
	style   m.Style
	outcome *Outcome
}

// Frame returns the underlying snapshot.
func (e *ChainEntry) Frame() *FrameSnapshot {
	return e.frame
}

// SetStyle forces this entry to render long or short regardless of the
// overall request, used to compress infrastructure frames.
func (e *ChainEntry) SetStyle(style m.Style) error {
	if style != m.StyleLong && style != m.StyleShort {
		return fmt.Errorf("entry style override must be long or short, got %q", style)
	}

	e.style = style

	return nil
}

// Style returns the explicit override, or StyleUnset.
func (e *ChainEntry) Style() m.Style {
	return e.style
}

// Hidden resolves the @hide marker, looking in the entry's locals first
// and falling back to its package globals. A predicate marker is invoked
// with the owning outcome, letting call sites suppress themselves based
// on the nature of the failure.
func (e *ChainEntry) Hidden() bool {
	v, ok := e.frame.Locals.Get(HideMarkerName)
	if !ok {
		v, ok = e.frame.Globals.Get(HideMarkerName)
	}

	return hideMarkerFrom(v, ok).resolve(e.outcome)
}

// String renders the entry the way the runtime's own chain text reads.
func (e *ChainEntry) String() string {
	lines := Deindent(e.frame.Statement())

	body := make([]string, len(lines))
	for i, line := range lines {
		body[i] = "    " + line
	}

	return fmt.Sprintf(
		"  File %q, line %d, in %s\n%s",
		e.frame.Unit.Path, e.frame.Line+1, e.frame.Unit.BaseName(),
		strings.Join(body, "\n"),
	)
}

// Chain is the ordered call chain of one failure, outermost caller
// first, faulting call last. Never empty once built from a real failure.
type Chain struct {
	entries []*ChainEntry
}

// ChainFromCallers builds a chain from captured program counters,
// resolving each level's routine identity and binding snapshots. Frames
// arrive from the runtime innermost-first and are reversed so the
// outermost caller leads.
func ChainFromCallers(pcs []uintptr, reg *SourceRegistry, outcome *Outcome) *Chain {
	frames := runtime.CallersFrames(pcs)
	depth := make(map[string]int)

	var inner []*ChainEntry

	for {
		fr, more := frames.Next()

		if fr.PC != 0 && !strings.HasPrefix(fr.Function, "runtime.") {
			unit := reg.Identify(fr)
			d := depth[fr.Function]
			depth[fr.Function] = d + 1

			entry := &ChainEntry{
				frame: &FrameSnapshot{
					Unit:    unit,
					Line:    fr.Line - 1,
					Locals:  reg.Scopes().localsAt(fr.Function, d),
					Args:    reg.Scopes().argsAt(fr.Function, d),
					Globals: reg.Scopes().globalsFor(fr.Function),
					reg:     reg,
				},
				outcome: outcome,
			}
			inner = append(inner, entry)
		}

		if !more {
			break
		}
	}

	entries := make([]*ChainEntry, len(inner))
	for i, e := range inner {
		entries[len(inner)-1-i] = e
	}

	return &Chain{entries: entries}
}

// NewChain builds a chain from explicit entries, preserving order.
func NewChain(entries []*ChainEntry) *Chain {
	out := make([]*ChainEntry, len(entries))
	copy(out, entries)

	return &Chain{entries: out}
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	return len(c.entries)
}

// At returns the i-th entry, outermost first.
func (c *Chain) At(i int) *ChainEntry {
	return c.entries[i]
}

// Entries returns a copy of the entry slice.
func (c *Chain) Entries() []*ChainEntry {
	out := make([]*ChainEntry, len(c.entries))
	copy(out, c.entries)

	return out
}

// Slice returns the sub-chain [i, j), clamped to the chain bounds.
func (c *Chain) Slice(i, j int) *Chain {
	if i < 0 {
		i = 0
	}

	if j > len(c.entries) {
		j = len(c.entries)
	}

	if i >= j {
		return &Chain{}
	}

	return NewChain(c.entries[i:j])
}

// Filter returns a new chain with only the entries satisfying pred,
// preserving relative order. A nil pred keeps the non-hidden entries.
func (c *Chain) Filter(pred func(*ChainEntry) bool) *Chain {
	if pred == nil {
		pred = func(e *ChainEntry) bool { return !e.Hidden() }
	}

	var entries []*ChainEntry

	for _, e := range c.entries {
		if pred(e) {
			entries = append(entries, e)
		}
	}

	return &Chain{entries: entries}
}

// Cut names the criteria locating the first entry of the sub-chain to
// keep. Unset fields match everything.
type Cut struct {
	Path        m.Path
	ExcludePath m.Path
	Line        *int // 0-based
	FirstLine   *int // 0-based
}

// CutAt is a convenience for the pointer fields of Cut.
func CutAt(line int) *int {
	return &line
}

// Cut returns the sub-chain starting at the first entry matching all
// given criteria; the original chain when nothing matches. Used to drop
// uninteresting leading frames before display.
func (c *Chain) Cut(cut Cut) *Chain {
	for i, e := range c.entries {
		unit := e.frame.Unit

		if cut.Path != "" && unit.Path != cut.Path {
			continue
		}

		if cut.ExcludePath != "" && strings.HasPrefix(string(unit.Path), string(cut.ExcludePath)) {
			continue
		}

		if cut.Line != nil && e.frame.Line != *cut.Line {
			continue
		}

		if cut.FirstLine != nil && unit.FirstLine != *cut.FirstLine {
			continue
		}

		return NewChain(c.entries[i:])
	}

	return c
}

// CrashEntry returns the last non-hidden entry, the one that led to the
// failure. When every entry is hidden the last entry is returned anyway;
// a report must always have some location to show.
func (c *Chain) CrashEntry() *ChainEntry {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if !c.entries[i].Hidden() {
			return c.entries[i]
		}
	}

	if len(c.entries) == 0 {
		return nil
	}

	return c.entries[len(c.entries)-1]
}

type recKey struct {
	entry uintptr
	path  m.Path
	line  int
}

type recSeen struct {
	locals Bindings
	index  int
}

// RecursionIndex detects an unbounded recursive call chain. It returns
// the index of the recursion origin: the earliest entry whose local
// bindings are equalled by a later entry at the same source position.
// Comparing user data may itself fault; the fault is surfaced as a
// RecursionDetectionFault so report generation can degrade instead of
// crashing.
func (c *Chain) RecursionIndex() (int, bool, error) {
	cache := make(map[recKey][]recSeen)

	for i, e := range c.entries {
		key := recKey{entry: e.frame.Unit.entry, path: e.frame.Unit.Path, line: e.frame.Line}

		for _, other := range cache[key] {
			eq, fault := safeEqual(e.frame.Locals, other.locals)
			if fault != nil {
				kind, msg := faultKindMessage(fault)

				return 0, false, RecursionDetectionFault{Kind: kind, Message: msg}
			}

			if eq {
				return other.index, true, nil
			}
		}

		cache[key] = append(cache[key], recSeen{locals: e.frame.Locals, index: i})
	}

	return 0, false, nil
}

func faultKindMessage(p any) (string, string) {
	switch x := p.(type) {
	case error:
		return typeName(x), x.Error()
	case string:
		return "panic", x
	default:
		return typeName(x), safeMessage(x)
	}
}
