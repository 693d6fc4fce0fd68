package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fred913/scadstudio/internal/worker"
)

func TestRenderWritesArtifact(t *testing.T) {
	src := writeSource(t, "cube(10);")
	out := filepath.Join(t.TempDir(), "part.stl")

	var seen worker.Request
	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      out,
		View:        "3d",
		Factory:     scriptedFactory(worker.Result{Output: []byte("solid")}, &seen),
	}
	cmd, stdout, _ := newTestCommand(t)

	require.NoError(t, runRender(opts, src, cmd))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "solid", string(data))
	assert.Contains(t, stdout.String(), "wrote "+out)
	assert.Equal(t, "cube(10);", seen.Source)
	assert.Contains(t, seen.Args, "-o")
	assert.Contains(t, seen.Args, "model.stl")
}

func TestRenderPassesDefinesAndBackend(t *testing.T) {
	src := writeSource(t, "cube(size);")
	out := filepath.Join(t.TempDir(), "part.stl")

	var seen worker.Request
	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      out,
		View:        "3d",
		Backend:     "manifold",
		Defines:     []string{"size=12"},
		Factory:     scriptedFactory(worker.Result{Output: []byte("solid")}, &seen),
	}
	cmd, _, _ := newTestCommand(t)

	require.NoError(t, runRender(opts, src, cmd))
	assert.Contains(t, seen.Args, "--backend=manifold")
	assert.Contains(t, seen.Args, "-D")
	assert.Contains(t, seen.Args, "size=12")
}

func TestRenderCompileErrorExitsWithFailure(t *testing.T) {
	src := writeSource(t, "cube(")
	out := filepath.Join(t.TempDir(), "part.stl")

	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      out,
		View:        "3d",
		Factory: scriptedFactory(worker.Result{
			Stderr:   "ERROR: Parser error: syntax error in line 1\n",
			ExitCode: 1,
		}, nil),
	}
	cmd, stdout, _ := newTestCommand(t)

	err := runRender(opts, src, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout.String(), "Parser error")
	assert.NoFileExists(t, out)
}

func TestRenderUnknownViewIsCommandError(t *testing.T) {
	src := writeSource(t, "cube(10);")

	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      filepath.Join(t.TempDir(), "part.stl"),
		View:        "iso",
		Factory:     scriptedFactory(worker.Result{Output: []byte("x")}, nil),
	}
	cmd, _, _ := newTestCommand(t)

	err := runRender(opts, src, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRenderMissingSourceFile(t *testing.T) {
	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      filepath.Join(t.TempDir(), "part.stl"),
		Factory:     scriptedFactory(worker.Result{}, nil),
	}
	cmd, _, _ := newTestCommand(t)

	err := runRender(opts, filepath.Join(t.TempDir(), "missing.scad"), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRenderJSONOutput(t *testing.T) {
	src := writeSource(t, "sphere(5);")
	out := filepath.Join(t.TempDir(), "part.stl")

	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "json"},
		Output:      out,
		View:        "3d",
		Factory: scriptedFactory(worker.Result{
			Output: []byte("solid"),
			Stderr: "WARNING: variable x undefined in line 2\n",
		}, nil),
	}
	cmd, stdout, _ := newTestCommand(t)

	require.NoError(t, runRender(opts, src, cmd))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, out, data["output"])
	assert.Equal(t, "mesh", data["kind"])
	assert.Equal(t, float64(5), data["bytes"])

	diags, ok := data["diagnostics"].([]interface{})
	require.True(t, ok)
	require.Len(t, diags, 1)
}

func TestRenderPresetApplied(t *testing.T) {
	src := writeSource(t, "cube(size);")
	presetDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(presetDir, "presets.cue"),
		[]byte("preset: big: {size: 40, wall: 3}\n"), 0o644))

	var seen worker.Request
	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      filepath.Join(t.TempDir(), "part.stl"),
		View:        "3d",
		Preset:      "big",
		PresetDir:   presetDir,
		Factory:     scriptedFactory(worker.Result{Output: []byte("solid")}, &seen),
	}
	cmd, _, _ := newTestCommand(t)

	require.NoError(t, runRender(opts, src, cmd))
	assert.Contains(t, seen.Args, "size=40")
	assert.Contains(t, seen.Args, "wall=3")
}

func TestRenderUnknownPreset(t *testing.T) {
	src := writeSource(t, "cube(size);")
	presetDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(presetDir, "presets.cue"),
		[]byte("preset: big: {size: 40}\n"), 0o644))

	opts := &RenderCmdOptions{
		RootOptions: &RootOptions{Format: "text"},
		Output:      filepath.Join(t.TempDir(), "part.stl"),
		Preset:      "huge",
		PresetDir:   presetDir,
		Factory:     scriptedFactory(worker.Result{Output: []byte("solid")}, nil),
	}
	cmd, _, _ := newTestCommand(t)

	err := runRender(opts, src, cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
