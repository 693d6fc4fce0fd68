package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/diag"
	"github.com/fred913/scadstudio/internal/render"
	"github.com/fred913/scadstudio/internal/worker"
)

// RenderCmdOptions holds flags for the render command.
type RenderCmdOptions struct {
	*RootOptions
	Output    string
	View      string
	Backend   string
	Preset    string
	PresetDir string
	Defines   []string

	// Factory allows overriding the compute unit factory (for testing).
	// If nil, defaults to an OpenSCAD subprocess factory.
	Factory worker.UnitFactory
}

// RenderSummary is the machine-readable render report.
type RenderSummary struct {
	Output      string            `json:"output"`
	Kind        string            `json:"kind"`
	Bytes       int               `json:"bytes"`
	FromCache   bool              `json:"fromCache"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <file.scad>",
		Short: "Render a model to a mesh or 2D outline",
		Long: `Compile an OpenSCAD source file and write the rendered artifact.

The 3d view produces a mesh, the 2d view an SVG outline. Results are
cached by source content and render options, so repeating a render of
unchanged input skips the engine entirely.

Example:
  scadstudio render -o part.stl part.scad
  scadstudio render -o outline.svg --view 2d part.scad
  scadstudio render -o part.stl --preset large -D wall=3 part.scad`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (required)")
	cmd.Flags().StringVar(&opts.View, "view", render.View3D, "view mode (3d|2d)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "geometry backend (e.g. manifold)")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "parameter preset name")
	cmd.Flags().StringVar(&opts.PresetDir, "preset-dir", "", "directory of CUE preset files")
	cmd.Flags().StringArrayVarP(&opts.Defines, "define", "D", nil, "variable override name=value (repeatable)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runRender(opts *RenderCmdOptions, file string, cmd *cobra.Command) error {
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

	backend := opts.Backend
	if backend == "" {
		backend = cfg.Backend
	}

	svc := newService(cfg, opts.Factory, newLogger(opts.Verbose))
	defer svc.Dispose()

	res, err := svc.Render(cmdContext(cmd), string(source), render.RenderOptions{
		View:    opts.View,
		Backend: backend,
		Defines: defines,
	})
	if err != nil {
		return renderError(formatter, err)
	}

	if diag.HasErrors(res.Diagnostics) || len(res.Output) == 0 {
		_ = formatter.Error(string(render.ErrCodeCompileFailed), "compilation failed", res.Diagnostics)
		return NewExitError(ExitFailure, "compilation failed")
	}
	if err := os.WriteFile(opts.Output, res.Output, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	for _, d := range res.Diagnostics {
		fmt.Fprintln(formatter.GetErrWriter(), d.String())
	}
	summary := RenderSummary{
		Output:      opts.Output,
		Kind:        string(res.Kind),
		Bytes:       len(res.Output),
		FromCache:   res.FromCache,
		Diagnostics: res.Diagnostics,
	}
	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	cached := ""
	if res.FromCache {
		cached = " (cached)"
	}
	return formatter.Success(fmt.Sprintf("wrote %s (%d bytes, %s)%s", opts.Output, summary.Bytes, summary.Kind, cached))
}

// renderError maps a render service failure onto a CLI exit error,
// emitting diagnostics when the service carried any.
func renderError(formatter *OutputFormatter, err error) error {
	var svcErr *render.ServiceError
	if errors.As(err, &svcErr) {
		_ = formatter.Error(string(svcErr.Code), svcErr.Message, svcErr.Diagnostics)
		if render.IsCompileFailed(err) {
			return NewExitError(ExitFailure, svcErr.Message)
		}
		return NewExitError(ExitCommandError, svcErr.Message)
	}
	return WrapExitError(ExitCommandError, "render failed", err)
}
