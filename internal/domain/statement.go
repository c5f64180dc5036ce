package domain

import (
	"go/ast"
	"go/token"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

// ParsedSource is a cached syntax tree for one source file. Parsing is
// the expensive part of statement resolution, so callers thread the tree
// back in across queries against the same file.
type ParsedSource struct {
	FileSet *token.FileSet
	File    *ast.File
}

// StatementRange maps a 0-based target line onto the smallest contiguous
// line range [start, end) fully spanning the syntactic statement that
// contains it. Compound statements resolve to the branch containing the
// line; continuation lines of a multi-line statement are included via the
// node's own span. A blank or comment line resolves to the nearest
// following statement; a line past the last parseable construct returns
// (targetLine, targetLine+1). Malformed source yields a SyntaxFault.
func StatementRange(parser adapter.GoFileAdapter, path m.Path, src []byte, targetLine int, cached *ParsedSource) (*ParsedSource, int, int, error) {
	tree := cached

	if tree == nil {
		fset := token.NewFileSet()

		file, err := parser.Parse(fset, string(path), src)
		if err != nil {
			return nil, 0, 0, SyntaxFault{Path: path, Err: err}
		}

		tree = &ParsedSource{FileSet: fset, File: file}
	}

	start, end := resolveRange(collectSpans(tree), targetLine)

	return tree, start, end, nil
}

// lineSpan is the inclusive 0-based line span of one statement node.
type lineSpan struct {
	node  ast.Node
	start int
	end   int
}

func collectSpans(tree *ParsedSource) []lineSpan {
	var spans []lineSpan

	ast.Inspect(tree.File, func(n ast.Node) bool {
		if n == nil {
			return false
		}

		switch n.(type) {
		case ast.Stmt, ast.Decl:
			spans = append(spans, lineSpan{
				node:  n,
				start: tree.FileSet.Position(n.Pos()).Line - 1,
				end:   tree.FileSet.Position(n.End()).Line - 1,
			})
		}

		return true
	})

	return spans
}

func resolveRange(spans []lineSpan, target int) (int, int) {
	best := innermostContaining(spans, target)
	if best == nil {
		// Between or past top-level constructs: resolve to the nearest
		// following statement, else fall back to a one-line range.
		if next := nearestFollowing(spans, target); next != nil {
			return resolveRange(spans, next.start)
		}

		return target, target + 1
	}

	inner := containedWithin(spans, best)
	if len(inner) == 0 {
		// Terminal statement: the full span, continuation lines included.
		return best.start, best.end + 1
	}

	if target == best.start {
		// Header line of a compound statement: stop before the first
		// nested statement on a later line.
		headerEnd := best.end + 1

		for _, s := range inner {
			if s.start > best.start && s.start < headerEnd {
				headerEnd = s.start
			}
		}

		return best.start, headerEnd
	}

	// Structural line inside a compound (blank, comment, closing brace):
	// take the nearest following nested statement if one exists.
	var next *lineSpan

	for i := range inner {
		s := inner[i]
		if s.start > target && (next == nil || s.start < next.start) {
			next = s
		}
	}

	if next != nil {
		return resolveRange(spans, next.start)
	}

	return target, target + 1
}

func innermostContaining(spans []lineSpan, target int) *lineSpan {
	var best *lineSpan

	for i := range spans {
		s := &spans[i]
		if s.start > target || s.end < target {
			continue
		}

		if best == nil || s.start > best.start || (s.start == best.start && s.end < best.end) {
			best = s
		}
	}

	return best
}

func nearestFollowing(spans []lineSpan, target int) *lineSpan {
	var next *lineSpan

	for i := range spans {
		s := &spans[i]
		if s.start > target && (next == nil || s.start < next.start) {
			next = s
		}
	}

	return next
}

func containedWithin(spans []lineSpan, outer *lineSpan) []*lineSpan {
	var inner []*lineSpan

	for i := range spans {
		s := &spans[i]
		if s.node == outer.node {
			continue
		}

		if s.start >= outer.start && s.end <= outer.end && (s.start > outer.start || s.end < outer.end) {
			inner = append(inner, s)
		}
	}

	return inner
}
