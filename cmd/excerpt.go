package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mouse-blink/traceview/internal/domain"
	m "github.com/mouse-blink/traceview/internal/model"
)

var excerptContextFlag int

// excerptCmd represents the excerpt command.
var excerptCmd = newExcerptCmd()

func newExcerptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excerpt FILE:LINE",
		Short: "Show the full statement containing a source line",
		Long: `Excerpt resolves the statement containing FILE:LINE and prints it with
surrounding context, the way report entries show failing code. Useful for
checking what a report would display for a given location.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, line, err := parseLocation(args[0])
			if err != nil {
				return err
			}

			abs, err := fsAdapter.Abs(path)
			if err != nil {
				return err
			}

			src, err := fsAdapter.ReadFile(abs)
			if err != nil {
				return err
			}

			_, start, end, err := domain.StatementRange(goFileAdapter, abs, src, line-1, nil)
			if err != nil {
				return err
			}

			text := registry.Load(abs)

			first := start - excerptContextFlag
			if first < 0 {
				first = 0
			}

			last := end + excerptContextFlag
			if last > text.Len() {
				last = text.Len()
			}

			return newUI(cmd).ShowExcerpt(abs, first, text.Slice(first, last), line-1)
		},
	}
	cmd.Flags().IntVarP(&excerptContextFlag, "context", "c", 2, "extra lines shown around the statement")

	return cmd
}

func parseLocation(arg string) (m.Path, int, error) {
	colon := strings.LastIndexByte(arg, ':')
	if colon <= 0 || colon == len(arg)-1 {
		return "", 0, fmt.Errorf("location must be FILE:LINE, got %q", arg)
	}

	line, err := strconv.Atoi(arg[colon+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("location must end in a positive line number, got %q", arg)
	}

	return m.Path(arg[:colon]), line, nil
}

func init() {
	rootCmd.AddCommand(excerptCmd)
}
