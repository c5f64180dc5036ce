package controller

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mouse-blink/traceview/internal/adapter"
	m "github.com/mouse-blink/traceview/internal/model"
)

// SimpleUI implements UI using cobra Command's output and an unstyled
// sink. Safe for pipes and files.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Close finalizes the UI.
func (s *SimpleUI) Close() {

}

// ShowReport serializes the full report through a plain sink.
func (s *SimpleUI) ShowReport(report *m.ChainReport) error {
	sink := adapter.NewPlainSink(s.cmd.OutOrStdout())
	report.WriteTo(sink)

	return nil
}

// ShowExcerpt prints numbered source lines with the fault line marked.
func (s *SimpleUI) ShowExcerpt(path m.Path, firstLine int, lines []string, faultLine int) error {
	s.printf("%s\n", path)

	for i, line := range lines {
		lineno := firstLine + i + 1
		marker := " "

		if firstLine+i == faultLine {
			marker = m.FlowMarker
		}

		s.printf("%s %4d | %s\n", marker, lineno, line)
	}

	return nil
}

// ShowChainSummary prints one table row per causal link, oldest first.
func (s *SimpleUI) ShowChainSummary(rows []ChainRow) error {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Line", "Failure"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_LEFT,
	})

	for _, row := range rows {
		failure := row.Kind
		if row.Message != "" {
			failure += ": " + row.Message
		}

		table.Append([]string{row.Path, fmt.Sprintf("%d", row.Line), failure})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Links %d", len(rows)), "", "",
	})

	table.Render()
	s.printf("\n%s", tableBuffer.String())

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
