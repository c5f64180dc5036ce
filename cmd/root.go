// Package cmd provides the root command and CLI setup for traceview.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mouse-blink/traceview/internal/adapter"
	"github.com/mouse-blink/traceview/internal/controller"
	"github.com/mouse-blink/traceview/internal/domain"
	m "github.com/mouse-blink/traceview/internal/model"
)

var goFileAdapter adapter.GoFileAdapter
var fsAdapter adapter.SourceFSAdapter
var registry *domain.SourceRegistry

func init() {
	goFileAdapter = adapter.NewLocalGoFileAdapter()
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	registry = domain.NewSourceRegistry(fsAdapter, goFileAdapter)
}

var styleFlag string
var localsFlag bool
var argsFlag bool
var keepHiddenFlag bool
var noChainFlag bool
var fullLocalsFlag bool
var plainFlag bool
var relPathsFlag bool
var reprBudgetFlag int
var configFlag string

var config Config

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traceview",
		Short: "Failure report renderer for Go programs",
		Long: `Traceview captures panics together with the call chain and deposited
variable bindings at the moment of failure, and renders them as readable
reports: source statements with the faulting line marked, locals and
arguments, and the causal chain of linked failures.

Report styles:
  - long     full statements, locals and crash locations (default)
  - short    one location line plus the faulting statement per entry
  - line     one location line per entry
  - native   the runtime's own panic text
  - no       no traceback, crash location only`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := LoadConfig(fsAdapter, m.Path(configFlag))
			if err != nil {
				return err
			}

			config = loaded

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&styleFlag, "style", "", "report style: long, short, line, native or no")
	cmd.PersistentFlags().BoolVar(&localsFlag, "locals", false, "show deposited local bindings per entry")
	cmd.PersistentFlags().BoolVar(&argsFlag, "args", false, "show deposited call arguments per entry")
	cmd.PersistentFlags().BoolVar(&keepHiddenFlag, "keep-hidden", false, "keep entries marked hidden in the report")
	cmd.PersistentFlags().BoolVar(&noChainFlag, "no-chain", false, "render only the newest failure, skipping causal links")
	cmd.PersistentFlags().BoolVar(&fullLocalsFlag, "full-locals", false, "render binding values without truncation")
	cmd.PersistentFlags().BoolVar(&plainFlag, "plain", false, "disable colors and the interactive pager")
	cmd.PersistentFlags().BoolVar(&relPathsFlag, "rel-paths", false, "shorten paths relative to the working directory")
	cmd.PersistentFlags().IntVar(&reprBudgetFlag, "repr-budget", 0, "maximum characters per rendered binding value")
	cmd.PersistentFlags().StringVar(&configFlag, "config", ".traceview.yaml", "path to the configuration file")

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// newUI builds the front-end for one command run, honoring --plain.
func newUI(cmd *cobra.Command) controller.UI {
	return controller.NewUI(cmd, !plainFlag && !config.Plain && controller.IsTTY(cmd.OutOrStdout()))
}

// renderOptions merges defaults, the config file and explicit flags.
// A flag set on the command line wins over the config file.
func renderOptions(cmd *cobra.Command) domain.RenderOptions {
	opts := config.apply(domain.DefaultRenderOptions())

	flags := cmd.Flags()

	if flags.Changed("style") {
		if style, err := m.ParseStyle(styleFlag); err == nil {
			opts.Style = style
		}
	}

	if flags.Changed("locals") {
		opts.ShowLocals = localsFlag
	}

	if flags.Changed("args") {
		opts.ShowArgs = argsFlag
	}

	if flags.Changed("keep-hidden") {
		opts.FilterHidden = !keepHiddenFlag
	}

	if flags.Changed("no-chain") {
		opts.ShowChain = !noChainFlag
	}

	if flags.Changed("full-locals") {
		opts.TruncateLocals = !fullLocalsFlag
	}

	if flags.Changed("rel-paths") {
		opts.AbsPaths = !relPathsFlag
	}

	if flags.Changed("repr-budget") && reprBudgetFlag > 0 {
		opts.ReprBudget = reprBudgetFlag
	}

	return opts
}
