package domain

import (
	"reflect"
	"runtime"
	"testing"

	"github.com/mouse-blink/traceview/internal/adapter"
)

func newTestRegistry() *SourceRegistry {
	return NewSourceRegistry(adapter.NewLocalSourceFSAdapter(), adapter.NewLocalGoFileAdapter())
}

func TestRegistryLoadMissingFile(t *testing.T) {
	reg := newTestRegistry()

	text := reg.Load("does/not/exist.go")
	if !text.Missing() {
		t.Fatalf("expected missing source text")
	}

	line, ok := text.Line(0)
	if !ok || line != "???" {
		t.Errorf("expected placeholder line, got %q ok=%v", line, ok)
	}
}

func TestRegistryLoadCachesText(t *testing.T) {
	reg := newTestRegistry()

	first := reg.Load(statementFixture)
	second := reg.Load(statementFixture)

	if first != second {
		t.Errorf("expected the cached text on the second load")
	}

	if first.Missing() {
		t.Fatalf("fixture should load")
	}

	if first.Len() == 0 {
		t.Errorf("expected lines in fixture")
	}
}

func TestRegistryIdentify(t *testing.T) {
	reg := newTestRegistry()

	pc, file, _, _ := runtime.Caller(0)
	frame := runtime.Frame{
		PC:       pc,
		Func:     runtime.FuncForPC(pc),
		Function: runtime.FuncForPC(pc).Name(),
		File:     file,
		Entry:    runtime.FuncForPC(pc).Entry(),
	}

	unit := reg.Identify(frame)
	if unit.Path.IsGenerated() {
		t.Fatalf("expected a real path for a test frame")
	}

	if unit.BaseName() != "TestRegistryIdentify" {
		t.Errorf("BaseName = %q, want TestRegistryIdentify", unit.BaseName())
	}

	again := reg.Identify(frame)
	if unit != again {
		t.Errorf("expected the same unit on repeated identification")
	}
}

func TestRegistryIdentifyGenerated(t *testing.T) {
	reg := newTestRegistry()

	unit := reg.Identify(runtime.Frame{PC: 42, Function: "made.up/pkg.Fn"})
	if !unit.Path.IsGenerated() {
		t.Errorf("frame without a file should map to the generated path")
	}
}

func TestSourceTextSliceClamps(t *testing.T) {
	text := newSourceText([]byte("a\nb\nc\n"))

	tests := []struct {
		name  string
		start int
		end   int
		want  []string
	}{
		{name: "full", start: 0, end: 3, want: []string{"a", "b", "c"}},
		{name: "middle", start: 1, end: 2, want: []string{"b"}},
		{name: "past end", start: 1, end: 99, want: []string{"b", "c"}},
		{name: "negative start", start: -4, end: 1, want: []string{"a"}},
		{name: "inverted", start: 2, end: 1, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := text.Slice(tt.start, tt.end)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Slice(%d,%d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestDeindent(t *testing.T) {
	got := Deindent([]string{"\t\tif x {", "\t\t\treturn", "\t\t}"})
	want := []string{"if x {", "\treturn", "}"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Deindent = %q, want %q", got, want)
	}
}

func TestRegistryStatementRangeDegradesOnMissingSource(t *testing.T) {
	reg := newTestRegistry()
	unit := &SourceUnit{Path: "gone.go", Name: "made.up/pkg.Fn"}

	start, end := reg.StatementRange(unit, 7)
	if start != 7 || end != 8 {
		t.Errorf("missing source should degrade to a one-line range, got [%d,%d)", start, end)
	}
}
