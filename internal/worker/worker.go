// Package worker manages the isolated compute units that compile OpenSCAD
// source, and the channel that correlates requests with their results.
//
// A unit is one-shot: the underlying engine tears its runtime down when a
// compilation finishes, so a unit must never be invoked twice. The channel
// therefore creates a fresh unit per request and relies on the platform
// (binary already resolved, OS page cache) for cheap re-creation, rather
// than pooling live units.
package worker

import "context"

// Request is a single compilation request sent to a unit.
//
// Args always designates an output path and may carry a backend selector
// and an export-format selector. The channel never interprets the
// arguments beyond passing them through.
type Request struct {
	Source string
	Args   []string
}

// Result is what a unit produced: the output artifact bytes, the raw
// diagnostic stream, and the unit's exit code.
//
// A nonzero exit code is a normal outcome (the source failed to compile),
// not a channel failure. Unit-level failures are reported as errors.
type Result struct {
	Output   []byte
	Stderr   string
	ExitCode int
}

// Unit is a single isolated compute instance.
//
// Invoke may be called at most once; after it returns, the unit is dead
// and must be discarded. Kill force-terminates an in-flight invocation
// and may be called from any goroutine.
type Unit interface {
	Invoke(ctx context.Context, req Request) (Result, error)
	Kill()
}

// UnitFactory creates a fresh unit. The factory is invoked once per
// request plus once at channel initialization to validate the
// environment. It must be safe for concurrent use.
type UnitFactory func() (Unit, error)
