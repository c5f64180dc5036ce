// Package controller provides output front-ends for rendered failure reports.
package controller

import (
	m "github.com/mouse-blink/traceview/internal/model"
)

// ChainRow is one line of the causal-chain summary table.
type ChainRow struct {
	Path    string
	Line    int
	Kind    string
	Message string
}

// UI defines the interface for presenting failure reports.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	ShowReport(report *m.ChainReport) error
	ShowExcerpt(path m.Path, firstLine int, lines []string, faultLine int) error
	ShowChainSummary(rows []ChainRow) error
	Close()
}
