package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/render"
	"github.com/fred913/scadstudio/internal/worker"
)

// ExportCmdOptions holds flags for the export command.
type ExportCmdOptions struct {
	*RootOptions
	Output    string
	ExportFmt string
	Backend   string
	Preset    string
	PresetDir string
	Defines   []string

	// Factory allows overriding the compute unit factory (for testing).
	Factory worker.UnitFactory
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <file.scad>",
		Short: "Export a model to a manufacturing or image format",
		Long: fmt.Sprintf(`Compile an OpenSCAD source file into the named export format.

Supported formats: %s. When --export-format is omitted it is inferred
from the output file extension.

Example:
  scadstudio export -o part.3mf part.scad
  scadstudio export -o part.stl --export-format stl --preset large part.scad`, strings.Join(render.ExportFormats(), ", ")),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (required)")
	cmd.Flags().StringVar(&opts.ExportFmt, "export-format", "", "export format, inferred from --output when omitted")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "geometry backend (e.g. manifold)")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "parameter preset name")
	cmd.Flags().StringVar(&opts.PresetDir, "preset-dir", "", "directory of CUE preset files")
	cmd.Flags().StringArrayVarP(&opts.Defines, "define", "D", nil, "variable override name=value (repeatable)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(opts *ExportCmdOptions, file string, cmd *cobra.Command) error {
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
	defines, err := resolveDefines(cfg, opts.PresetDir, opts.Preset, opts.Defines)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve preset", err)
	}

	format := opts.ExportFmt
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(opts.Output), ".")
		if format == "" {
			return NewExitError(ExitCommandError, "cannot infer export format: output file has no extension")
		}
	}

	backend := opts.Backend
	if backend == "" {
		backend = cfg.Backend
	}

	svc := newService(cfg, opts.Factory, newLogger(opts.Verbose))
	defer svc.Dispose()

	out, err := svc.Export(cmdContext(cmd), string(source), format, render.ExportOptions{
		Backend: backend,
		Defines: defines,
	})
	if err != nil {
		return renderError(formatter, err)
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]interface{}{
			"output": opts.Output,
			"format": format,
			"bytes":  len(out),
		})
	}
	return formatter.Success(fmt.Sprintf("wrote %s (%d bytes, %s)", opts.Output, len(out), format))
}
