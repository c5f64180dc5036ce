package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mouse-blink/traceview/internal/controller"
	"github.com/mouse-blink/traceview/internal/domain"
	m "github.com/mouse-blink/traceview/internal/model"
)

var probeSummaryFlag bool

// probeCmd represents the probe command.
var probeCmd = newProbeCmd()

type probeResult struct {
	name   string
	report *m.ChainReport
}

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [scenario...]",
		Short: "Capture and render built-in failure scenarios",
		Long: `Probe runs built-in failing scenarios, captures each panic with its call
chain and deposited bindings, and renders the reports under the current
style flags. With no arguments every scenario runs.

Scenarios:
  - basic      a single failing call with locals and arguments
  - chained    a failure explicitly linked to the failure that triggered it
  - wrapped    a failure carrying a wrapped error, unwrapped into the chain
  - recursive  unbounded recursion, truncated at the repeat point
  - hidden     a helper marked hidden, filtered from the report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = scenarioNames()
			}

			for _, name := range names {
				if _, ok := scenarios[name]; !ok {
					return fmt.Errorf("unknown scenario %q (want one of: %s)",
						name, strings.Join(scenarioNames(), ", "))
				}
			}

			opts := renderOptions(cmd)
			results := make([]probeResult, len(names))

			group := new(errgroup.Group)

			for i, name := range names {
				i, name := i, name
				group.Go(func() error {
					// Each scenario gets its own registry so concurrent
					// deposits stay isolated.
					reg := domain.NewSourceRegistry(fsAdapter, goFileAdapter)

					outcome := scenarios[name](reg)

					renderer := domain.NewRenderer(reg, fsAdapter, opts)

					report, err := renderer.Render(outcome)
					if err != nil {
						return fmt.Errorf("scenario %s: %w", name, err)
					}

					results[i] = probeResult{name: name, report: report}

					return nil
				})
			}

			if err := group.Wait(); err != nil {
				return err
			}

			ui := newUI(cmd)
			defer ui.Close()

			for _, result := range results {
				cmd.Printf("==== scenario %s ====\n", result.name)

				if err := ui.ShowReport(result.report); err != nil {
					return err
				}

				if probeSummaryFlag {
					if err := ui.ShowChainSummary(chainRows(result.report)); err != nil {
						return err
					}
				}
			}

			return nil
		},
	}
	cmd.Flags().BoolVar(&probeSummaryFlag, "summary", false, "append a per-link summary table after each report")

	return cmd
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// chainRows flattens a report's crash locations into summary rows,
// oldest link first.
func chainRows(report *m.ChainReport) []controller.ChainRow {
	rows := make([]controller.ChainRow, 0, len(report.Links))

	for _, link := range report.Links {
		if link.Location == nil {
			continue
		}

		kind, msg := splitShortText(link.Location.Message)
		rows = append(rows, controller.ChainRow{
			Path:    string(link.Location.Path),
			Line:    link.Location.Line,
			Kind:    kind,
			Message: msg,
		})
	}

	return rows
}

func splitShortText(text string) (string, string) {
	if i := strings.Index(text, ": "); i >= 0 {
		return text[:i], text[i+2:]
	}

	return text, ""
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
