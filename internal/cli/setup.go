package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fred913/scadstudio/internal/config"
	"github.com/fred913/scadstudio/internal/profile"
	"github.com/fred913/scadstudio/internal/render"
	"github.com/fred913/scadstudio/internal/worker"
)

// cmdContext returns the command's context, or Background when the
// command runs outside Execute (direct invocation from tests).
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig resolves effective configuration. An empty path means
// built-in defaults; an explicit path must exist and parse strictly.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the CLI logger. Verbose drops the level to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newService builds the render service from configuration. A non-nil
// factory overrides the OpenSCAD subprocess factory (for testing).
func newService(cfg config.Config, factory worker.UnitFactory, log *slog.Logger) *render.Service {
	if factory == nil {
		binary := cfg.OpenSCADBinary
		if binary == "" {
			binary = worker.DefaultBinary
		}
		factory = worker.ExecFactory(worker.ExecConfig{Binary: binary})
	}
	return render.New(factory,
		render.WithCacheCapacity(cfg.CacheCapacity),
		render.WithLogger(log))
}

// resolveDefines merges preset parameters with explicit -D overrides.
// Explicit overrides come last so they win inside the engine.
func resolveDefines(cfg config.Config, presetDir, presetName string, explicit []string) ([]string, error) {
	if presetName == "" {
		return explicit, nil
	}
	dir := presetDir
	if dir == "" {
		dir = cfg.PresetDir
	}
	if dir == "" {
		return nil, fmt.Errorf("preset %q requested but no preset directory configured", presetName)
	}
	presets, err := profile.LoadPresets(dir)
	if err != nil {
		return nil, err
	}
	p, ok := presets[presetName]
	if !ok {
		names := make([]string, 0, len(presets))
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown preset %q (available: %v)", presetName, names)
	}
	return append(p.Defines(), explicit...), nil
}
