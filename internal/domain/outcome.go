package domain

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	m "github.com/mouse-blink/traceview/internal/model"
)

const maxCaptureDepth = 64

// AssertionFailure is the payload assertion helpers panic with. Its kind
// prefix is stripped from short-form rendering so assertion reports lead
// with the actual condition text.
type AssertionFailure struct {
	Msg string
}

func (e AssertionFailure) Error() string {
	return e.Msg
}

// Outcome owns one captured failure: its type identity, its payload and
// the call chain active when it propagated. Created unfilled (a
// placeholder to be populated inside a recover block) and filled exactly
// once; re-filling is an error.
type Outcome struct {
	reg *SourceRegistry

	value    any
	kind     string
	hasValue bool
	filled   bool

	pcs []uintptr
	raw []string

	chain       *Chain
	stripPrefix string

	cause           *Outcome
	context         *Outcome
	suppressContext bool
}

// ForLater returns an unfilled placeholder outcome.
func ForLater(reg *SourceRegistry) *Outcome {
	return &Outcome{reg: reg}
}

// FromRecovered captures the current failure from a recover() value. It
// must be called on the panicking goroutine, inside the deferred
// function, so the faulting frames are still on the stack.
func FromRecovered(recovered any, reg *SourceRegistry) (*Outcome, error) {
	if recovered == nil {
		return nil, NoActiveFailureFault{}
	}

	o := ForLater(reg)
	// skip 2: the deferred recovery function and the panic dispatch
	// above it are not part of the failing code.
	if err := o.Fill(recovered, 2); err != nil {
		return nil, err
	}

	// Materialize the chain now, while the failing frames' deposits are
	// still in the scope table.
	_, _ = o.Chain()

	return o, nil
}

// Fill attaches the failure data exactly once. skip counts stack frames
// above the caller of Fill to drop from the chain (0 keeps the caller as
// the faulting entry).
func (o *Outcome) Fill(value any, skip int) error {
	if o.filled {
		return AlreadyFilledFault{}
	}

	if value == nil {
		return NoActiveFailureFault{}
	}

	pcs := make([]uintptr, maxCaptureDepth)
	n := runtime.Callers(skip+2, pcs)

	o.value = value
	o.kind = typeName(value)
	o.hasValue = true
	o.pcs = pcs[:n]
	o.raw = nativeText(value, o.pcs)
	o.filled = true

	if _, ok := value.(AssertionFailure); ok {
		o.stripPrefix = o.kind + ": "
	} else if _, ok := value.(*AssertionFailure); ok {
		o.stripPrefix = o.kind + ": "
	}

	return nil
}

// derived wraps a predecessor failure value that carries no captured
// chain of its own (a wrapped error discovered via Unwrap).
func derived(value any, reg *SourceRegistry) *Outcome {
	return &Outcome{
		reg:      reg,
		value:    value,
		kind:     typeName(value),
		hasValue: value != nil,
	}
}

// Filled reports whether failure data has been attached.
func (o *Outcome) Filled() bool {
	return o.filled
}

// Kind returns the failure's type identity.
func (o *Outcome) Kind() string {
	return o.kind
}

// Value returns the failure payload.
func (o *Outcome) Value() any {
	return o.value
}

// SetStripPrefix configures boilerplate text elided from short-form
// rendering.
func (o *Outcome) SetStripPrefix(prefix string) {
	o.stripPrefix = prefix
}

// CausedBy links a predecessor outcome as the direct cause of this
// failure. Returns o for chaining.
func (o *Outcome) CausedBy(prev *Outcome) *Outcome {
	o.cause = prev

	return o
}

// WhileHandling links the outcome that was being handled when this
// failure occurred. Returns o for chaining.
func (o *Outcome) WhileHandling(prev *Outcome) *Outcome {
	o.context = prev

	return o
}

// SuppressContext hides the context link from rendered chains.
func (o *Outcome) SuppressContext() {
	o.suppressContext = true
}

// Cause returns the linked direct-cause outcome, if any.
func (o *Outcome) Cause() *Outcome {
	return o.cause
}

// Context returns the linked handled-failure outcome, if any.
func (o *Outcome) Context() *Outcome {
	return o.context
}

// ContextSuppressed reports whether the context link is suppressed.
func (o *Outcome) ContextSuppressed() bool {
	return o.suppressContext
}

// Chain materializes the call chain from the captured stack, lazily,
// then caches it.
func (o *Outcome) Chain() (*Chain, error) {
	if !o.filled {
		return nil, UnfilledFault{Op: "chain access"}
	}

	if o.chain == nil {
		o.chain = ChainFromCallers(o.pcs, o.reg, o)
	}

	return o.chain, nil
}

// SetChain replaces the materialized chain, typically with a cut or
// filtered one.
func (o *Outcome) SetChain(c *Chain) {
	o.chain = c
}

// ShortText renders "Kind: message". With tryShort, the configured
// boilerplate prefix is stripped.
func (o *Outcome) ShortText(tryShort bool) string {
	text := o.kind

	if msg := safeMessage(o.value); msg != "" {
		text += ": " + msg
	}

	if tryShort && o.stripPrefix != "" {
		text = strings.TrimPrefix(text, o.stripPrefix)
	}

	return text
}

// CrashLocation points at the faulting call: the crash entry's position
// plus the short failure text.
func (o *Outcome) CrashLocation() (m.LocationReport, error) {
	chain, err := o.Chain()
	if err != nil {
		return m.LocationReport{}, err
	}

	entry := chain.CrashEntry()
	if entry == nil {
		return m.LocationReport{Message: o.ShortText(true)}, nil
	}

	return m.LocationReport{
		Path:    entry.frame.Unit.Path,
		Line:    entry.frame.Line + 1,
		Message: o.ShortText(true),
	}, nil
}

// Matches searches ShortText's payload portion with the given regular
// expression. A non-match is a MatchFault, never a silent false, and the
// fault hints at escaping when the pattern equals the text verbatim.
func (o *Outcome) Matches(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid match pattern %q: %w", pattern, err)
	}

	text := safeMessage(o.value)
	if re.FindStringIndex(text) == nil {
		return MatchFault{Pattern: pattern, Text: text}
	}

	return nil
}

// rawLines returns the runtime-native chain text captured at fill time.
func (o *Outcome) rawLines() []string {
	return o.raw
}

// nativeText formats the captured stack the way the runtime prints a
// panicking goroutine.
func nativeText(value any, pcs []uintptr) []string {
	lines := []string{"panic: " + panicSummary(value), ""}

	frames := runtime.CallersFrames(pcs)

	for {
		fr, more := frames.Next()

		if fr.PC != 0 {
			lines = append(lines,
				fr.Function+"(...)",
				fmt.Sprintf("\t%s:%d", fr.File, fr.Line),
			)
		}

		if !more {
			break
		}
	}

	return lines
}
