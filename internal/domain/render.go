package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

// ChainPolicy decides which causal link wins when a failure carries both
// a direct cause and a handled-failure context.
type ChainPolicy string

const (
	PreferCause   ChainPolicy = "cause"
	PreferContext ChainPolicy = "context"
)

const (
	causeNote   = "The following failure was triggered by the failure above:"
	contextNote = "The following failure occurred while handling the failure above:"

	recursionNote = "!!! Recursion detected (same bindings & position)"

	// Frames kept on each side when recursion detection itself fails.
	fallbackFrames = 10
)

// RenderOptions controls how a captured outcome turns into a report.
type RenderOptions struct {
	Style          m.Style
	ShowLocals     bool
	ShowArgs       bool
	FilterHidden   bool
	TruncateLocals bool
	ShowChain      bool
	ChainPolicy    ChainPolicy
	AbsPaths       bool
	ReprBudget     int
}

// DefaultRenderOptions is the long-form terminal report.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Style:          m.StyleLong,
		FilterHidden:   true,
		TruncateLocals: true,
		ShowChain:      true,
		ChainPolicy:    PreferCause,
		AbsPaths:       true,
		ReprBudget:     DefaultReprBudget,
	}
}

// Renderer turns captured outcomes into report trees. It holds no
// per-outcome state; one renderer serves any number of failures.
type Renderer struct {
	reg  *SourceRegistry
	fs   adapter.SourceFSAdapter
	opts RenderOptions
}

// NewRenderer constructs a renderer over the given registry.
func NewRenderer(reg *SourceRegistry, fs adapter.SourceFSAdapter, opts RenderOptions) *Renderer {
	if opts.Style == m.StyleUnset {
		opts.Style = m.StyleLong
	}

	if opts.ChainPolicy == "" {
		opts.ChainPolicy = PreferCause
	}

	if opts.ReprBudget <= 0 {
		opts.ReprBudget = DefaultReprBudget
	}

	return &Renderer{reg: reg, fs: fs, opts: opts}
}

type chainItem struct {
	outcome *Outcome
	note    string
}

// Render builds the full causal report for a filled outcome. Rendering
// an unfilled placeholder is a precondition fault, never a partial
// report.
func (r *Renderer) Render(o *Outcome) (*m.ChainReport, error) {
	if !o.Filled() {
		return nil, UnfilledFault{Op: "render"}
	}

	items := r.collectChain(o)

	report := &m.ChainReport{}

	for _, item := range items {
		link, err := r.renderLink(item.outcome)
		if err != nil {
			return nil, err
		}

		link.Note = item.note
		report.Links = append(report.Links, link)
	}

	return report, nil
}

// collectChain walks the causal links newest-first and returns them
// oldest-first. A cycle through already-seen outcomes or failure values
// terminates the walk; Unwrap-derived links allocate a fresh outcome per
// step, so outcome identity alone cannot catch an Unwrap cycle. The note
// computed on each step belongs to the older outcome, since notes
// introduce the failure that follows them.
func (r *Renderer) collectChain(o *Outcome) []chainItem {
	seen := make(map[*Outcome]bool)
	seenValues := make(map[any]bool)

	var items []chainItem

	cur, note := o, ""
	for cur != nil && !seen[cur] {
		if markSeen(seenValues, cur.Value()) {
			break
		}

		seen[cur] = true
		items = append(items, chainItem{outcome: cur, note: note})

		if !r.opts.ShowChain {
			break
		}

		cur, note = r.predecessor(cur)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items
}

// predecessor picks the next-older failure linked to o, if any.
func (r *Renderer) predecessor(o *Outcome) (*Outcome, string) {
	first, second := o.Cause(), o.Context()
	firstNote, secondNote := causeNote, contextNote

	if r.opts.ChainPolicy == PreferContext {
		first, second = second, first
		firstNote, secondNote = secondNote, firstNote
	}

	if first == o.Context() && o.ContextSuppressed() {
		first = nil
	}

	if second == o.Context() && o.ContextSuppressed() {
		second = nil
	}

	if first != nil {
		return first, firstNote
	}

	if second != nil {
		return second, secondNote
	}

	if err, ok := o.Value().(error); ok {
		if inner := errors.Unwrap(err); inner != nil {
			return derived(inner, o.reg), causeNote
		}
	}

	return nil, ""
}

// renderLink renders one failure of the chain.
func (r *Renderer) renderLink(o *Outcome) (m.ChainLink, error) {
	if !o.Filled() {
		// A wrapped error discovered via Unwrap carries no captured
		// chain; its identity line is all there is to show.
		return m.ChainLink{
			Trace: m.NativeTracebackReport{RawLines: []string{o.ShortText(true)}},
		}, nil
	}

	if r.opts.Style == m.StyleNative {
		loc, err := o.CrashLocation()
		if err != nil {
			return m.ChainLink{}, err
		}

		return m.ChainLink{
			Trace:    m.NativeTracebackReport{RawLines: o.rawLines()},
			Location: &loc,
		}, nil
	}

	if r.opts.Style == m.StyleNone {
		loc, err := o.CrashLocation()
		if err != nil {
			return m.ChainLink{}, err
		}

		loc.Path = r.displayPath(loc.Path)

		return m.ChainLink{Location: &loc}, nil
	}

	trace, err := r.renderTraceback(o)
	if err != nil {
		return m.ChainLink{}, err
	}

	loc, err := o.CrashLocation()
	if err != nil {
		return m.ChainLink{}, err
	}

	loc.Path = r.displayPath(loc.Path)

	return m.ChainLink{Trace: trace, Location: &loc}, nil
}

// renderTraceback renders one failure's call chain: visibility filter,
// recursion truncation, then per-entry serialization. Filtering that
// would hide every entry is ignored so a report always shows code.
func (r *Renderer) renderTraceback(o *Outcome) (m.TracebackReport, error) {
	chain, err := o.Chain()
	if err != nil {
		return m.TracebackReport{}, err
	}

	if r.opts.FilterHidden {
		filtered := chain.Filter(nil)
		if filtered.Len() > 0 {
			chain = filtered
		}
	}

	extraNote := ""

	idx, found, recErr := chain.RecursionIndex()

	switch {
	case recErr != nil:
		chain, extraNote = truncateOnFault(chain, recErr)
	case found:
		chain = chain.Slice(0, idx+1)
		extraNote = recursionNote
	}

	report := m.TracebackReport{Style: r.opts.Style, ExtraNote: extraNote}

	last := chain.Len() - 1
	for i := 0; i <= last; i++ {
		entry, err := r.renderEntry(chain.At(i), o, i == last)
		if err != nil {
			return m.TracebackReport{}, err
		}

		report.Entries = append(report.Entries, entry)
	}

	return report, nil
}

// truncateOnFault keeps the chain's head and tail when recursion
// detection blew up comparing user data, and says so in the note.
func truncateOnFault(chain *Chain, recErr error) (*Chain, string) {
	if chain.Len() <= 2*fallbackFrames {
		return chain, recErr.Error()
	}

	entries := make([]*ChainEntry, 0, 2*fallbackFrames)
	entries = append(entries, chain.Entries()[:fallbackFrames]...)
	entries = append(entries, chain.Entries()[chain.Len()-fallbackFrames:]...)

	note := fmt.Sprintf(
		"!!! %s\n!!! showing the first and last %d frames of %d",
		recErr.Error(), fallbackFrames, chain.Len(),
	)

	return NewChain(entries), note
}

// renderEntry serializes one chain entry under its effective style.
func (r *Renderer) renderEntry(e *ChainEntry, o *Outcome, isCrash bool) (m.EntryReport, error) {
	style := r.opts.Style
	if e.Style() != m.StyleUnset {
		style = e.Style()
	}

	frame := e.Frame()

	entry := m.EntryReport{Style: style}

	if style == m.StyleLine {
		entry.Location = &m.LocationReport{
			Path:    r.displayPath(frame.Unit.Path),
			Line:    frame.Line + 1,
			Message: o.ShortText(true),
		}

		return entry, nil
	}

	entry.SourceLines = r.markSource(frame, o, isCrash)

	if style == m.StyleLong && r.opts.ShowArgs {
		entry.Args = r.renderArgs(frame)
	}

	if r.opts.ShowLocals {
		entry.Locals = r.renderLocals(frame)
	}

	entry.Location = &m.LocationReport{
		Path:    r.displayPath(frame.Unit.Path),
		Line:    frame.Line + 1,
		Message: locationMessage(o, isCrash),
	}

	if style == m.StyleShort {
		entry.Location.Message = "in " + frame.Unit.BaseName()
	}

	return entry, nil
}

func locationMessage(o *Outcome, isCrash bool) string {
	if isCrash {
		return o.ShortText(true)
	}

	return ""
}

// markSource deindents the statement and prefixes each line with the
// flow marker on the faulting line and padding elsewhere. On the crash
// entry the failure text follows, fail-marked line by line.
func (r *Renderer) markSource(frame *FrameSnapshot, o *Outcome, isCrash bool) []string {
	start, _ := frame.StatementRange()
	lines := Deindent(frame.Statement())

	marked := make([]string, 0, len(lines)+1)

	for i, line := range lines {
		if start+i == frame.Line {
			marked = append(marked, m.FlowMarker+"   "+line)
		} else {
			marked = append(marked, "    "+line)
		}
	}

	if isCrash {
		for _, line := range strings.Split(o.ShortText(true), "\n") {
			if line == "" {
				marked = append(marked, strings.TrimRight(m.FailMarkerPrefix, " "))
			} else {
				marked = append(marked, m.FailMarkerPrefix+line)
			}
		}
	}

	return marked
}

// renderArgs builds the call-argument block from the entry's deposited
// argument bindings, if any.
func (r *Renderer) renderArgs(frame *FrameSnapshot) *m.ArgsReport {
	args := frame.Args
	if args.Len() == 0 {
		return nil
	}

	report := &m.ArgsReport{}

	for _, name := range args.Names() {
		if strings.HasPrefix(name, "@") {
			continue
		}

		v, _ := args.Get(name)
		report.Pairs = append(report.Pairs, m.ArgPair{
			Name:  name,
			Value: SafeRepr(v, r.opts.ReprBudget),
		})
	}

	if len(report.Pairs) == 0 {
		return nil
	}

	return report
}

// renderLocals builds the locals block, skipping marker names. Values
// go through the guarded converter so a faulting conversion degrades to
// a placeholder line instead of killing the report.
func (r *Renderer) renderLocals(frame *FrameSnapshot) *m.LocalsReport {
	locals := frame.Locals
	if locals.Len() == 0 {
		return nil
	}

	report := &m.LocalsReport{}

	for _, name := range locals.Names() {
		if strings.HasPrefix(name, "@") {
			continue
		}

		v, _ := locals.Get(name)

		var value string
		if r.opts.TruncateLocals {
			value = SafeRepr(v, r.opts.ReprBudget)
		} else {
			value = SafeFormat(v)
		}

		report.Lines = append(report.Lines, fmt.Sprintf("%-10s = %s", name, value))
	}

	if len(report.Lines) == 0 {
		return nil
	}

	return report
}

// markSeen records v in the visited-value set and reports whether it
// was already there. Uncomparable payloads are left untracked; hashing
// user data may itself fault, which also leaves the value untracked
// rather than killing the report.
func markSeen(set map[any]bool, v any) (seen bool) {
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return false
	}

	defer func() { _ = recover() }()

	if set[v] {
		return true
	}

	set[v] = true

	return false
}

// displayPath shortens an absolute path relative to the working
// directory when relative display is requested and the result is not
// longer than the original.
func (r *Renderer) displayPath(path m.Path) m.Path {
	if r.opts.AbsPaths || path.IsGenerated() || r.fs == nil {
		return path
	}

	wd, err := r.fs.WorkingDir()
	if err != nil {
		return path
	}

	rel, err := r.fs.RelPath(wd, path)
	if err != nil || len(rel) >= len(path) {
		return path
	}

	return rel
}
