package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/fred913/scadstudio/internal/worker"
)

// scriptedUnit returns a canned result and records the request it saw.
type scriptedUnit struct {
	result worker.Result
	err    error
	seen   *worker.Request
}

func (u *scriptedUnit) Invoke(ctx context.Context, req worker.Request) (worker.Result, error) {
	if u.seen != nil {
		*u.seen = req
	}
	return u.result, u.err
}

func (u *scriptedUnit) Kill() {}

// scriptedFactory produces units that all return the same result.
func scriptedFactory(result worker.Result, seen *worker.Request) worker.UnitFactory {
	return func() (worker.Unit, error) {
		return &scriptedUnit{result: result, seen: seen}, nil
	}
}

// newTestCommand wires buffers into a bare command for direct run calls.
func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, out, errOut
}

// writeSource drops a .scad file into a temp dir and returns its path.
func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.scad")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
