package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// DefaultBinary is the engine binary resolved from PATH when no explicit
// path is configured.
const DefaultBinary = "openscad"

// inputFileName is the source file written into the unit's scratch
// directory. Each unit gets a fresh directory, so concurrent units never
// collide on it.
const inputFileName = "input.scad"

// ExecConfig configures subprocess-based compute units.
type ExecConfig struct {
	// Binary is the engine executable. Defaults to DefaultBinary,
	// resolved from PATH.
	Binary string
}

// ExecFactory returns a UnitFactory producing one-shot subprocess units.
//
// The factory resolves the binary once per unit so a missing or broken
// installation surfaces at channel initialization rather than deep inside
// a render call.
func ExecFactory(cfg ExecConfig) UnitFactory {
	bin := cfg.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	return func() (Unit, error) {
		path, err := exec.LookPath(bin)
		if err != nil {
			return nil, fmt.Errorf("engine binary %q not found: %w", bin, err)
		}
		ctx, kill := context.WithCancel(context.Background())
		return &execUnit{binary: path, killCtx: ctx, kill: kill}, nil
	}
}

// execUnit runs the engine binary once in a private scratch directory.
//
// The scratch directory gives every invocation a fresh filesystem
// namespace: input and output file names can never collide across
// concurrent or consecutive requests.
type execUnit struct {
	binary  string
	killCtx context.Context
	kill    context.CancelFunc

	mu   sync.Mutex
	used bool
}

// Invoke writes the source into the scratch directory, runs the binary
// with the request's argument vector, and collects the output artifact
// and stderr stream.
//
// A nonzero exit is returned as a Result with the exit code set, because
// a failed compile is an ordinary outcome carrying diagnostics. Only
// spawn failures and kill-induced termination are errors.
func (u *execUnit) Invoke(ctx context.Context, req Request) (Result, error) {
	u.mu.Lock()
	if u.used {
		u.mu.Unlock()
		return Result{}, errors.New("compute unit already consumed")
	}
	u.used = true
	u.mu.Unlock()

	tmpDir, err := os.MkdirTemp("", "scadstudio-unit-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := os.WriteFile(filepath.Join(tmpDir, inputFileName), []byte(req.Source), 0o644); err != nil {
		return Result{}, fmt.Errorf("write source: %w", err)
	}

	outputName := outputPath(req.Args)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-u.killCtx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	args := append(append([]string{}, req.Args...), inputFileName)
	cmd := exec.CommandContext(runCtx, u.binary, args...)
	cmd.Dir = tmpDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if u.killCtx.Err() != nil {
		return Result{}, errors.New("compute unit killed")
	}

	res := Result{Stderr: stderr.String()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, fmt.Errorf("run engine: %w", runErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if outputName != "" {
		// Missing output with a clean exit still yields an empty buffer;
		// classification is the orchestrator's job.
		if data, err := os.ReadFile(filepath.Join(tmpDir, outputName)); err == nil {
			res.Output = data
		}
	}

	return res, nil
}

// Kill force-terminates the in-flight invocation, if any.
func (u *execUnit) Kill() {
	u.kill()
}

// outputPath extracts the output file name designated by the argument
// vector ("-o <path>" or "-o<path>").
func outputPath(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return args[i+1]
		}
		if len(a) > 2 && a[:2] == "-o" {
			return a[2:]
		}
	}
	return ""
}
