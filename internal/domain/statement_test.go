package domain

import (
	"os"
	"testing"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

const statementFixture = "../../examples/statement/main.go"

func loadFixture(t *testing.T) []byte {
	t.Helper()

	src, err := os.ReadFile(statementFixture)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	return src
}

func TestStatementRange(t *testing.T) {
	src := loadFixture(t)

	tests := []struct {
		name      string
		target    int
		wantStart int
		wantEnd   int
	}{
		{
			name:      "simple assignment",
			target:    6,
			wantStart: 6,
			wantEnd:   7,
		},
		{
			name:      "loop header stops before body",
			target:    7,
			wantStart: 7,
			wantEnd:   8,
		},
		{
			name:      "statement inside loop body",
			target:    8,
			wantStart: 8,
			wantEnd:   9,
		},
		{
			name:      "blank line resolves to following statement",
			target:    10,
			wantStart: 11,
			wantEnd:   12,
		},
		{
			name:      "multi-line return spans continuation lines",
			target:    15,
			wantStart: 15,
			wantEnd:   21,
		},
		{
			name:      "continuation line maps to its statement",
			target:    18,
			wantStart: 15,
			wantEnd:   21,
		},
		{
			name:      "closing brace with nothing following",
			target:    28,
			wantStart: 28,
			wantEnd:   29,
		},
		{
			name:      "package clause resolves to first declaration",
			target:    0,
			wantStart: 2,
			wantEnd:   3,
		},
	}

	parser := adapter.NewLocalGoFileAdapter()

	var cached *ParsedSource

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, start, end, err := StatementRange(parser, m.Path(statementFixture), src, tt.target, cached)
			if err != nil {
				t.Fatalf("StatementRange error: %v", err)
			}

			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("target %d: got [%d,%d), want [%d,%d)", tt.target, start, end, tt.wantStart, tt.wantEnd)
			}

			cached = tree
		})
	}
}

func TestStatementRangeReusesTree(t *testing.T) {
	src := loadFixture(t)
	parser := adapter.NewLocalGoFileAdapter()

	tree, _, _, err := StatementRange(parser, m.Path(statementFixture), src, 6, nil)
	if err != nil {
		t.Fatalf("first resolve error: %v", err)
	}

	again, _, _, err := StatementRange(parser, m.Path(statementFixture), src, 8, tree)
	if err != nil {
		t.Fatalf("cached resolve error: %v", err)
	}

	if again != tree {
		t.Errorf("expected the cached tree to be returned unchanged")
	}
}

func TestStatementRangeMalformedSource(t *testing.T) {
	parser := adapter.NewLocalGoFileAdapter()

	_, _, _, err := StatementRange(parser, "broken.go", []byte("package main\nfunc {"), 1, nil)
	if err == nil {
		t.Fatalf("expected a syntax fault")
	}

	if _, ok := err.(SyntaxFault); !ok {
		t.Errorf("expected SyntaxFault, got %T", err)
	}
}
