package domain

import (
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

// placeholderLine is shown when the underlying source is unavailable.
const placeholderLine = "???"

// SourceText is the line sequence of one source file, lazily loaded once.
type SourceText struct {
	lines   []string
	data    []byte
	missing bool
}

func newSourceText(data []byte) *SourceText {
	text := string(data)
	text = strings.TrimSuffix(text, "\n")

	return &SourceText{lines: strings.Split(text, "\n"), data: data}
}

func placeholderSourceText() *SourceText {
	return &SourceText{lines: []string{placeholderLine}, missing: true}
}

// Missing reports whether the file could not be loaded and the text is a
// synthetic placeholder.
func (t *SourceText) Missing() bool {
	return t.missing
}

// Len returns the number of lines.
func (t *SourceText) Len() int {
	return len(t.lines)
}

// Line returns the 0-based line i.
func (t *SourceText) Line(i int) (string, bool) {
	if i < 0 || i >= len(t.lines) {
		return "", false
	}

	return t.lines[i], true
}

// Slice returns the lines in [start, end), clamped to the file bounds so
// indexing never crosses them.
func (t *SourceText) Slice(start, end int) []string {
	if start < 0 {
		start = 0
	}

	if end > len(t.lines) {
		end = len(t.lines)
	}

	if start >= end {
		return nil
	}

	out := make([]string, end-start)
	copy(out, t.lines[start:end])

	return out
}

// Deindent strips the common leading whitespace shared by all non-blank
// lines, so excerpts read naturally outside their original nesting.
func Deindent(lines []string) []string {
	common := -1

	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}

		indent := len(line) - len(trimmed)
		if common < 0 || indent < common {
			common = indent
		}
	}

	if common <= 0 {
		return lines
	}

	out := make([]string, len(lines))

	for i, line := range lines {
		if len(line) >= common {
			out[i] = line[common:]
		} else {
			out[i] = strings.TrimLeft(line, " \t")
		}
	}

	return out
}

// SourceUnit is the identity of one compiled routine: where it is
// declared and what it is called. Immutable once constructed; cached per
// distinct runtime entry point.
type SourceUnit struct {
	Path      m.Path
	FirstLine int // 0-based
	Name      string

	entry uintptr
}

// BaseName returns the function name without its package qualifier.
func (u *SourceUnit) BaseName() string {
	name := u.Name
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	return name
}

// Package returns the import path portion of the routine name.
func (u *SourceUnit) Package() string {
	return packageOf(u.Name)
}

type stmtKey struct {
	path m.Path
	line int
}

type lineRange struct {
	start int
	end   int
}

// SourceRegistry owns the caches behind report generation: routine
// identities, loaded source text, parsed trees and resolved statement
// ranges. All caches are append-only; concurrent
// readers share one RWMutex. The registry is passed explicitly to every
// consumer so tests stay deterministic.
type SourceRegistry struct {
	mu     sync.RWMutex
	fs     adapter.SourceFSAdapter
	parser adapter.GoFileAdapter
	scopes *ScopeTable

	units map[uintptr]*SourceUnit
	texts map[m.Path]*SourceText
	trees map[m.Path]*ParsedSource
	stmts map[stmtKey]lineRange
}

// NewSourceRegistry constructs a registry backed by the given adapters.
func NewSourceRegistry(fs adapter.SourceFSAdapter, parser adapter.GoFileAdapter) *SourceRegistry {
	return &SourceRegistry{
		fs:     fs,
		parser: parser,
		scopes: NewScopeTable(),
		units:  make(map[uintptr]*SourceUnit),
		texts:  make(map[m.Path]*SourceText),
		trees:  make(map[m.Path]*ParsedSource),
		stmts:  make(map[stmtKey]lineRange),
	}
}

// Scopes returns the binding table call sites deposit their locals into.
func (r *SourceRegistry) Scopes() *ScopeTable {
	return r.scopes
}

// Identify resolves a runtime frame to its SourceUnit, idempotent per
// distinct entry point.
func (r *SourceRegistry) Identify(frame runtime.Frame) *SourceUnit {
	key := frame.Entry
	if key == 0 {
		key = frame.PC
	}

	r.mu.RLock()
	unit, ok := r.units[key]
	r.mu.RUnlock()

	if ok {
		return unit
	}

	file := frame.File
	first := frame.Line

	if frame.Func != nil {
		file, first = frame.Func.FileLine(frame.Entry)
	}

	path := m.Path(file)
	if file == "" {
		path = m.GeneratedPath
		first = 1
	}

	unit = &SourceUnit{
		Path:      path,
		FirstLine: first - 1,
		Name:      frame.Function,
		entry:     key,
	}

	r.mu.Lock()
	if cached, ok := r.units[key]; ok {
		unit = cached
	} else {
		r.units[key] = unit
	}
	r.mu.Unlock()

	return unit
}

// Load returns the source text for path, loading it at most once. Source
// unavailability never aborts report generation: a missing or generated
// file yields the placeholder text.
func (r *SourceRegistry) Load(path m.Path) *SourceText {
	r.mu.RLock()
	text, ok := r.texts[path]
	r.mu.RUnlock()

	if ok {
		return text
	}

	if path.IsGenerated() {
		text = placeholderSourceText()
	} else if data, err := r.fs.ReadFile(path); err != nil {
		text = placeholderSourceText()
	} else {
		text = newSourceText(data)
	}

	r.mu.Lock()
	if cached, ok := r.texts[path]; ok {
		text = cached
	} else {
		r.texts[path] = text
	}
	r.mu.Unlock()

	return text
}

// StatementRange resolves the statement containing the 0-based line of
// the given unit, caching the result per (path, line). A missing file or
// a syntax fault degrades to the one-line range (line, line+1).
func (r *SourceRegistry) StatementRange(unit *SourceUnit, line int) (int, int) {
	key := stmtKey{path: unit.Path, line: line}

	r.mu.RLock()
	rng, ok := r.stmts[key]
	tree := r.trees[unit.Path]
	r.mu.RUnlock()

	if ok {
		return rng.start, rng.end
	}

	text := r.Load(unit.Path)

	if text.Missing() {
		rng = lineRange{start: line, end: line + 1}
	} else {
		parsed, start, end, err := StatementRange(r.parser, unit.Path, text.data, line, tree)
		if err != nil {
			rng = lineRange{start: line, end: line + 1}
		} else {
			rng = clampRange(start, end, line, text.Len())
			tree = parsed
		}
	}

	r.mu.Lock()
	if cached, ok := r.stmts[key]; ok {
		rng = cached
	} else {
		r.stmts[key] = rng
	}

	if tree != nil {
		if _, ok := r.trees[unit.Path]; !ok {
			r.trees[unit.Path] = tree
		}
	}
	r.mu.Unlock()

	return rng.start, rng.end
}

// clampRange keeps a resolved range inside the file and non-empty.
func clampRange(start, end, line, fileLen int) lineRange {
	if start < 0 {
		start = 0
	}

	if fileLen > 0 && end > fileLen {
		end = fileLen
	}

	if start >= end {
		start, end = line, line+1
	}

	return lineRange{start: start, end: end}
}

// packageOf extracts the import path from a fully qualified function
// name like "github.com/acme/pkg.(*T).Method".
func packageOf(function string) string {
	slash := strings.LastIndexByte(function, '/')
	base := function[slash+1:]

	dot := strings.IndexByte(base, '.')
	if dot < 0 {
		return function
	}

	return function[:slash+1+dot]
}

// sortedNames returns map keys in deterministic order.
func sortedNames(vals map[string]any) []string {
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
