package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

func renderToString(t *testing.T, reg *SourceRegistry, o *Outcome, opts RenderOptions) string {
	t.Helper()

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), opts)

	report, err := renderer.Render(o)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	var buf bytes.Buffer

	report.WriteTo(adapter.NewPlainSinkWidth(&buf, 80))

	return buf.String()
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}

	return ""
}

func TestRenderLongReport(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		heatKettle(reg.Scopes(), 120)
	})

	text := renderToString(t, reg, out, DefaultRenderOptions())

	if !strings.Contains(text, m.FlowMarker+"   ") {
		t.Errorf("expected a flow-marked faulting line:\n%s", text)
	}

	if !strings.Contains(text, m.FailMarkerPrefix+"errorString: kettle boiled over at 120") {
		t.Errorf("expected the fail-marked failure text:\n%s", text)
	}

	if !strings.Contains(text, m.EntrySep) {
		t.Errorf("expected entry separators between long entries:\n%s", text)
	}

	chain, _ := out.Chain()
	crash := chain.CrashEntry().Frame()

	want := fmt.Sprintf("%s:%d: errorString: kettle boiled over at 120", crash.Unit.Path, crash.Line+1)
	if got := lastNonEmptyLine(text); got != want {
		t.Errorf("final line = %q, want %q", got, want)
	}
}

func TestRenderShowsLocalsAndArgs(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		sealValve(reg.Scopes(), "intake", 9)
	})

	opts := DefaultRenderOptions()
	opts.ShowLocals = true
	opts.ShowArgs = true

	text := renderToString(t, reg, out, opts)

	if !strings.Contains(text, "torque     = 9") {
		t.Errorf("expected aligned locals:\n%s", text)
	}

	if !strings.Contains(text, `valve = "intake"`) {
		t.Errorf("expected argument pairs:\n%s", text)
	}

	if strings.Contains(text, HideMarkerName) {
		t.Errorf("marker bindings must never render:\n%s", text)
	}
}

func sealValve(scopes *ScopeTable, valve string, torque int) {
	scopes.BindArgs(Vars{"valve": valve, "torque": torque})
	scopes.Bind(Vars{"torque": torque, HideMarkerName: false})

	panic(fmt.Errorf("valve %s cannot hold torque %d", valve, torque))
}

func TestRenderCausalChain(t *testing.T) {
	reg := newTestRegistry()

	inner := captureOutcome(t, reg, func() {
		boilOver(reg.Scopes(), 120)
	})

	outer := captureOutcome(t, reg, func() {
		panic(AssertionFailure{Msg: "kettle state corrupted"})
	})

	outer.CausedBy(inner)

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(outer)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(report.Links))
	}

	if !strings.Contains(report.Links[0].Location.Message, "kettle boiled over") {
		t.Errorf("oldest failure must come first, got %q", report.Links[0].Location.Message)
	}

	if report.Links[0].Note != causeNote {
		t.Errorf("note on the older link = %q, want %q", report.Links[0].Note, causeNote)
	}

	if report.Links[1].Note != "" {
		t.Errorf("the newest link carries no note, got %q", report.Links[1].Note)
	}

	if loc := report.CrashLocation(); loc == nil || loc.Message != "kettle state corrupted" {
		t.Errorf("report crash location must be the newest failure, got %v", loc)
	}
}

func TestRenderContextNote(t *testing.T) {
	reg := newTestRegistry()

	first := captureOutcome(t, reg, func() {
		boilOver(reg.Scopes(), 120)
	})

	second := captureOutcome(t, reg, func() {
		panic(errors.New("cleanup failed too"))
	})

	second.WhileHandling(first)

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(second)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(report.Links))
	}

	if report.Links[0].Note != contextNote {
		t.Errorf("note = %q, want %q", report.Links[0].Note, contextNote)
	}
}

func TestRenderSuppressedContext(t *testing.T) {
	reg := newTestRegistry()

	first := captureOutcome(t, reg, func() {
		boilOver(reg.Scopes(), 120)
	})

	second := captureOutcome(t, reg, func() {
		panic(errors.New("cleanup failed too"))
	})

	second.WhileHandling(first)
	second.SuppressContext()

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(second)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 1 {
		t.Errorf("suppressed context must not render, got %d links", len(report.Links))
	}
}

func TestRenderUnwrapsWrappedErrors(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		panic(fmt.Errorf("flushing queue: %w", errors.New("connection refused")))
	})

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 2 {
		t.Fatalf("expected the wrapped error as its own link, got %d", len(report.Links))
	}

	native, ok := report.Links[0].Trace.(m.NativeTracebackReport)
	if !ok {
		t.Fatalf("a chainless predecessor renders its identity line, got %T", report.Links[0].Trace)
	}

	if !strings.Contains(strings.Join(native.RawLines, "\n"), "connection refused") {
		t.Errorf("predecessor line should carry the wrapped message")
	}
}

// selfFeedingError unwraps to itself, the tightest possible Unwrap cycle.
type selfFeedingError struct {
	msg string
}

func (e *selfFeedingError) Error() string { return e.msg }

func (e *selfFeedingError) Unwrap() error { return e }

type pingError struct {
	peer error
}

func (e *pingError) Error() string { return "ping failed" }

func (e *pingError) Unwrap() error { return e.peer }

func TestRenderUnwrapCycleStops(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		panic(&selfFeedingError{msg: "retry storm"})
	})

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 1 {
		t.Errorf("a self-unwrapping failure is one link, got %d", len(report.Links))
	}
}

func TestRenderMutualUnwrapCycleStops(t *testing.T) {
	reg := newTestRegistry()

	a := &pingError{}
	b := &pingError{peer: a}
	a.peer = b

	out := captureOutcome(t, reg, func() {
		panic(a)
	})

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), DefaultRenderOptions())

	report, err := renderer.Render(out)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 2 {
		t.Errorf("a two-failure cycle renders each once, got %d links", len(report.Links))
	}
}

func TestRenderNoChainOption(t *testing.T) {
	reg := newTestRegistry()

	inner := captureOutcome(t, reg, func() {
		boilOver(reg.Scopes(), 120)
	})

	outer := captureOutcome(t, reg, func() {
		panic(errors.New("follow-up"))
	})

	outer.CausedBy(inner)

	opts := DefaultRenderOptions()
	opts.ShowChain = false

	renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), opts)

	report, err := renderer.Render(outer)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if len(report.Links) != 1 {
		t.Errorf("ShowChain=false must render the newest failure only, got %d links", len(report.Links))
	}
}

func TestRenderRecursionTruncation(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		descend(reg.Scopes(), 0)
	})

	text := renderToString(t, reg, out, DefaultRenderOptions())

	if !strings.Contains(text, recursionNote) {
		t.Errorf("expected the recursion note:\n%s", text)
	}

	if got := strings.Count(text, "descend(scopes, step+1)"); got > 1 {
		t.Errorf("truncated chain should show the recursive call once, got %d times", got)
	}
}

func TestRenderRecursionDetectionFault(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		descendTouchy(reg.Scopes(), 0)
	})

	text := renderToString(t, reg, out, DefaultRenderOptions())

	if !strings.Contains(text, "recursion detection failed") {
		t.Errorf("expected the detection fault in the note:\n%s", text)
	}
}

func TestRenderStyles(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		heatKettle(reg.Scopes(), 120)
	})

	t.Run("short", func(t *testing.T) {
		opts := DefaultRenderOptions()
		opts.Style = m.StyleShort

		text := renderToString(t, reg, out, opts)

		if !strings.Contains(text, "in boilOver") {
			t.Errorf("short style uses in-routine location lines:\n%s", text)
		}

		if strings.Contains(text, m.EntrySep) {
			t.Errorf("short style has no entry separators:\n%s", text)
		}
	})

	t.Run("line", func(t *testing.T) {
		opts := DefaultRenderOptions()
		opts.Style = m.StyleLine

		text := renderToString(t, reg, out, opts)

		if strings.Contains(text, m.FlowMarker+"   ") {
			t.Errorf("line style carries no source lines:\n%s", text)
		}

		if !strings.Contains(text, "kettle boiled over at 120") {
			t.Errorf("line style still names the failure:\n%s", text)
		}
	})

	t.Run("native", func(t *testing.T) {
		opts := DefaultRenderOptions()
		opts.Style = m.StyleNative

		text := renderToString(t, reg, out, opts)

		if !strings.HasPrefix(text, "panic: ") {
			t.Errorf("native style replays the runtime text:\n%s", text)
		}
	})

	t.Run("no", func(t *testing.T) {
		opts := DefaultRenderOptions()
		opts.Style = m.StyleNone

		renderer := NewRenderer(reg, adapter.NewLocalSourceFSAdapter(), opts)

		report, err := renderer.Render(out)
		if err != nil {
			t.Fatalf("render: %v", err)
		}

		if report.Links[0].Trace != nil {
			t.Errorf("style no renders no traceback")
		}

		if report.CrashLocation() == nil {
			t.Errorf("style no still resolves the crash location")
		}
	})
}

func TestRenderHiddenFiltering(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		shadowRelay(reg.Scopes(), 120)
	})

	text := renderToString(t, reg, out, DefaultRenderOptions())

	if strings.Contains(text, "boilOver(scopes, temp)") {
		t.Errorf("hidden entries must not render by default:\n%s", text)
	}

	opts := DefaultRenderOptions()
	opts.FilterHidden = false

	kept := renderToString(t, reg, out, opts)

	if !strings.Contains(kept, "boilOver(scopes, temp)") {
		t.Errorf("FilterHidden=false must keep the hidden entry:\n%s", kept)
	}
}

func TestRenderEntryStyleOverride(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		heatKettle(reg.Scopes(), 120)
	})

	chain, _ := out.Chain()

	for i := 0; i < chain.Len()-1; i++ {
		if err := chain.At(i).SetStyle(m.StyleShort); err != nil {
			t.Fatalf("override: %v", err)
		}
	}

	text := renderToString(t, reg, out, DefaultRenderOptions())

	if !strings.Contains(text, "in heatKettle") {
		t.Errorf("overridden entries render short:\n%s", text)
	}

	if !strings.Contains(text, m.FailMarkerPrefix) {
		t.Errorf("the crash entry stays long:\n%s", text)
	}
}

func TestRenderTruncatesLocalValues(t *testing.T) {
	reg := newTestRegistry()

	out := captureOutcome(t, reg, func() {
		spillLog(reg.Scopes(), strings.Repeat("x", 400))
	})

	opts := DefaultRenderOptions()
	opts.ShowLocals = true
	opts.ReprBudget = 60

	text := renderToString(t, reg, out, opts)

	if !strings.Contains(text, "...") {
		t.Errorf("expected a truncated local value:\n%s", text)
	}

	opts.TruncateLocals = false

	full := renderToString(t, reg, out, opts)

	if !strings.Contains(full, strings.Repeat("x", 400)) {
		t.Errorf("full locals must not truncate:\n%s", full)
	}
}

func spillLog(scopes *ScopeTable, payload string) {
	scopes.Bind(Vars{"payload": payload})

	panic(errors.New("log buffer overflow"))
}
