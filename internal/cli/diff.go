package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/textdiff"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	MaxLines int
}

// DiffReport is the machine-readable diff output.
type DiffReport struct {
	Diff         string `json:"diff"`
	AddedLines   int    `json:"addedLines"`
	RemovedLines int    `json:"removedLines"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <old-file> <new-file>",
		Short: "Show a line diff between two source files",
		Long: `Compute a full-context line diff between two files.

Unchanged lines are prefixed with a space, removals with "-" and
additions with "+". Inputs larger than the line budget are refused
rather than truncated.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxLines, "max-lines", textdiff.DefaultMaxLines, "refuse inputs beyond this many total lines")

	return cmd
}

func runDiff(opts *DiffOptions, oldPath, newPath string, cmd *cobra.Command) error {
	from, err := os.ReadFile(oldPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read old file", err)
	}
	to, err := os.ReadFile(newPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read new file", err)
	}

	res, err := textdiff.DiffMax(textdiff.Lines(string(from)), textdiff.Lines(string(to)), opts.MaxLines)
	if err != nil {
		var tooLarge *textdiff.ErrTooLarge
		if errors.As(err, &tooLarge) {
			return WrapExitError(ExitCommandError, "inputs too large to diff", err)
		}
		return WrapExitError(ExitCommandError, "diff failed", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	report := DiffReport{Diff: res.Text, AddedLines: res.Added, RemovedLines: res.Removed}
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintln(formatter.Writer, report.Diff)
	fmt.Fprintf(formatter.Writer, "+%d -%d\n", report.AddedLines, report.RemovedLines)
	return nil
}
