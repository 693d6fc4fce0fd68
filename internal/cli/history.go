package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/history"
	"github.com/fred913/scadstudio/internal/store"
	"github.com/fred913/scadstudio/internal/textdiff"
)

// HistoryOptions holds flags shared by the history subcommands.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the checkpoint archive",
		Long: `Inspect checkpoints persisted in the SQLite archive.

The archive is append-only from the CLI's point of view: checkpoints are
written by the editing session and read back here for audit and recovery.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newHistoryListCommand(opts))
	cmd.AddCommand(newHistoryShowCommand(opts))
	cmd.AddCommand(newHistoryDiffCommand(opts))

	return cmd
}

func newHistoryListCommand(opts *HistoryOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List archived checkpoints, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(opts, limit, cmd)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the newest N checkpoints (0 = all)")

	return cmd
}

func newHistoryShowCommand(opts *HistoryOptions) *cobra.Command {
	var codeOnly bool

	cmd := &cobra.Command{
		Use:           "show <checkpoint-id>",
		Short:         "Show one checkpoint",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(opts, args[0], codeOnly, cmd)
		},
	}

	cmd.Flags().BoolVar(&codeOnly, "code", false, "print only the checkpoint source")

	return cmd
}

func newHistoryDiffCommand(opts *HistoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "diff <from-id> <to-id>",
		Short:         "Diff two checkpoints",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryDiff(opts, args[0], args[1], cmd)
		},
	}
}

func runHistoryList(opts *HistoryOptions, limit int, cmd *cobra.Command) error {
	archive, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer archive.Close()

	checkpoints, err := archive.List(cmdContext(cmd), limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list checkpoints", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(checkpoints)
	}
	if len(checkpoints) == 0 {
		fmt.Fprintln(formatter.Writer, "no checkpoints")
		return nil
	}
	for _, cp := range checkpoints {
		desc := cp.Description
		if desc == "" {
			desc = "-"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  %-8s  %s\n",
			cp.ID, cp.Timestamp.Format("2006-01-02 15:04:05"), cp.ChangeType, desc)
	}
	return nil
}

func runHistoryShow(opts *HistoryOptions, id string, codeOnly bool, cmd *cobra.Command) error {
	archive, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer archive.Close()

	cp, err := archive.Get(cmdContext(cmd), id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}
	if cp == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("checkpoint %q not found", id))
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if codeOnly {
		fmt.Fprint(formatter.Writer, cp.Code)
		return nil
	}
	if opts.Format == "json" {
		return formatter.Success(cp)
	}
	fmt.Fprintf(formatter.Writer, "id:          %s\n", cp.ID)
	fmt.Fprintf(formatter.Writer, "time:        %s\n", cp.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(formatter.Writer, "change type: %s\n", cp.ChangeType)
	if cp.Description != "" {
		fmt.Fprintf(formatter.Writer, "description: %s\n", cp.Description)
	}
	if len(cp.Diagnostics) > 0 {
		fmt.Fprintln(formatter.Writer, "diagnostics:")
		for _, d := range cp.Diagnostics {
			fmt.Fprintf(formatter.Writer, "  %s\n", d.String())
		}
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintln(formatter.Writer, cp.Code)
	return nil
}

func runHistoryDiff(opts *HistoryOptions, fromID, toID string, cmd *cobra.Command) error {
	archive, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	defer archive.Close()

	from, err := archive.Get(cmdContext(cmd), fromID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}
	to, err := archive.Get(cmdContext(cmd), toID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}
	if from == nil || to == nil {
		return NewExitError(ExitCommandError, "checkpoint not found")
	}

	res, err := textdiff.Diff(textdiff.Lines(from.Code), textdiff.Lines(to.Code))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to diff checkpoints", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(history.Diff{
			FromID:       fromID,
			ToID:         toID,
			Diff:         res.Text,
			AddedLines:   res.Added,
			RemovedLines: res.Removed,
		})
	}
	fmt.Fprintln(formatter.Writer, res.Text)
	fmt.Fprintf(formatter.Writer, "+%d -%d\n", res.Added, res.Removed)
	return nil
}
