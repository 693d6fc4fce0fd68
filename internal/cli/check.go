package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/diag"
	"github.com/fred913/scadstudio/internal/worker"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions

	// Factory allows overriding the compute unit factory (for testing).
	Factory worker.UnitFactory
}

// CheckResult holds syntax check results.
type CheckResult struct {
	Valid       bool              `json:"valid"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <file.scad>",
		Short: "Check a source file for compile errors",
		Long: `Compile an OpenSCAD source file purely to surface diagnostics.

The compiled artifact is discarded but stays in the render cache, so a
following render of the unchanged file is served from cache.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *CheckOptions, file string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read source", err)
	}

	svc := newService(cfg, opts.Factory, newLogger(opts.Verbose))
	defer svc.Dispose()

	diags, err := svc.CheckSyntax(cmdContext(cmd), string(source))
	if err != nil {
		return renderError(formatter, err)
	}

	result := CheckResult{Valid: !diag.HasErrors(diags), Diagnostics: diags}
	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		if len(diags) > 0 {
			fmt.Fprintln(formatter.Writer, diag.FormatList(diags))
		}
		if result.Valid {
			fmt.Fprintf(formatter.Writer, "%s: OK\n", file)
		}
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "compile errors found")
	}
	return nil
}
