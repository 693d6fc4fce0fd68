// Package history implements the editor's checkpoint engine: a linear,
// branch-truncating snapshot list with an undo/redo cursor and on-demand
// diffs between any two snapshots.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/fred913/scadstudio/internal/diag"
	"github.com/fred913/scadstudio/internal/textdiff"
)

// DefaultLimit is the maximum number of retained checkpoints. When the
// list grows past it, the oldest checkpoint is dropped from the front.
const DefaultLimit = 50

// Archive persists checkpoints beyond the process lifetime. Implemented
// by store.Archive; the engine treats it as an opaque sink.
type Archive interface {
	SaveCheckpoint(cp Checkpoint) error
	Clear() error
}

// Engine holds the ordered checkpoint list and the undo/redo cursor.
//
// Cursor semantics: nil means "at the newest checkpoint" (head). Undo
// moves the cursor toward index 0; redo moves it back toward the head and
// resets it to nil on arrival. Creating a checkpoint while the cursor is
// not at head truncates everything after the cursor first: redo history
// is irrevocably lost on any new edit after an undo.
//
// Thread-safety: all methods are safe for concurrent use. Interleaved
// Create and Undo/Redo calls would otherwise corrupt the cursor.
type Engine struct {
	mu      sync.Mutex
	list    []Checkpoint
	cursor  *int
	limit   int
	gen     IDGenerator
	archive Archive
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLimit overrides the retained-checkpoint bound.
func WithLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithIDGenerator overrides checkpoint id generation, typically with a
// SeqGenerator in tests.
func WithIDGenerator(gen IDGenerator) EngineOption {
	return func(e *Engine) { e.gen = gen }
}

// WithArchive persists every created checkpoint to a durable archive.
func WithArchive(a Archive) EngineOption {
	return func(e *Engine) { e.archive = a }
}

// NewEngine creates an empty checkpoint engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		limit: DefaultLimit,
		gen:   UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed replaces the engine's list with previously archived checkpoints,
// oldest first, cursor at head. Used at startup to restore a session.
func (e *Engine) Seed(list []Checkpoint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(list) > e.limit {
		list = list[len(list)-e.limit:]
	}
	e.list = append([]Checkpoint(nil), list...)
	e.cursor = nil
}

// Create records a new checkpoint and returns its id.
//
// If the cursor is mid-history, everything after it is discarded before
// appending; afterwards the cursor is back at head. When the list exceeds
// the retention limit the oldest checkpoint is dropped.
func (e *Engine) Create(code string, diags []diag.Diagnostic, description string, changeType ChangeType) (string, error) {
	if !changeType.Valid() {
		return "", fmt.Errorf("unknown change type %q", changeType)
	}

	e.mu.Lock()
	if e.cursor != nil {
		e.list = e.list[:*e.cursor+1]
		e.cursor = nil
	}
	cp := Checkpoint{
		ID:          e.gen.Generate(),
		Timestamp:   e.now(),
		Code:        code,
		Diagnostics: append([]diag.Diagnostic(nil), diags...),
		Description: description,
		ChangeType:  changeType,
	}
	e.list = append(e.list, cp)
	if len(e.list) > e.limit {
		e.list = e.list[len(e.list)-e.limit:]
	}
	archive := e.archive
	e.mu.Unlock()

	if archive != nil {
		if err := archive.SaveCheckpoint(cp); err != nil {
			return cp.ID, fmt.Errorf("archive checkpoint: %w", err)
		}
	}
	return cp.ID, nil
}

// Undo moves the cursor one step toward the oldest checkpoint and returns
// the checkpoint it lands on, or nil when already at the oldest retained
// one (or the list has at most one entry).
func (e *Engine) Undo() *Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.list) <= 1 {
		return nil
	}
	if e.cursor == nil {
		i := len(e.list) - 2
		e.cursor = &i
		return copyOf(e.list[i])
	}
	if *e.cursor == 0 {
		return nil
	}
	i := *e.cursor - 1
	e.cursor = &i
	return copyOf(e.list[i])
}

// Redo advances the cursor one step toward the head and returns the
// checkpoint it lands on. Arriving at the newest checkpoint resets the
// cursor to head. Returns nil when already at head.
func (e *Engine) Redo() *Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cursor == nil {
		return nil
	}
	next := *e.cursor + 1
	if next >= len(e.list) {
		return nil
	}
	if next == len(e.list)-1 {
		e.cursor = nil
	} else {
		e.cursor = &next
	}
	return copyOf(e.list[next])
}

// RestoreTo jumps the cursor directly to the checkpoint with the given
// id. Unlike Create, an explicit restore never truncates: jumping around
// does not destroy future history. Returns nil if id is not found.
func (e *Engine) RestoreTo(id string) *Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.list {
		if e.list[i].ID == id {
			if i == len(e.list)-1 {
				e.cursor = nil
			} else {
				idx := i
				e.cursor = &idx
			}
			return copyOf(e.list[i])
		}
	}
	return nil
}

// GetDiff computes the line diff between two checkpoints' code. Returns
// (nil, nil) if either id is absent.
func (e *Engine) GetDiff(fromID, toID string) (*Diff, error) {
	e.mu.Lock()
	from := e.findLocked(fromID)
	to := e.findLocked(toID)
	e.mu.Unlock()

	if from == nil || to == nil {
		return nil, nil
	}
	res, err := textdiff.Diff(textdiff.Lines(from.Code), textdiff.Lines(to.Code))
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", fromID, toID, err)
	}
	return &Diff{
		FromID:       fromID,
		ToID:         toID,
		Diff:         res.Text,
		AddedLines:   res.Added,
		RemovedLines: res.Removed,
	}, nil
}

// CanUndo reports whether Undo would move the cursor.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor == nil {
		return len(e.list) > 1
	}
	return *e.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor != nil
}

// Get returns a copy of the checkpoint with the given id, or nil.
func (e *Engine) Get(id string) *Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cp := e.findLocked(id); cp != nil {
		return copyOf(*cp)
	}
	return nil
}

// GetAll returns a defensive copy of the checkpoint list, oldest first.
func (e *Engine) GetAll() []Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Checkpoint, len(e.list))
	copy(out, e.list)
	for i := range out {
		out[i].Diagnostics = append([]diag.Diagnostic(nil), out[i].Diagnostics...)
	}
	return out
}

// Len returns the number of retained checkpoints.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

// Clear empties the list, resets the cursor, and wipes the archive.
func (e *Engine) Clear() error {
	e.mu.Lock()
	e.list = nil
	e.cursor = nil
	archive := e.archive
	e.mu.Unlock()

	if archive != nil {
		if err := archive.Clear(); err != nil {
			return fmt.Errorf("clear archive: %w", err)
		}
	}
	return nil
}

// findLocked returns a pointer into the live list. Caller must hold e.mu
// and must not retain the pointer past the unlock.
func (e *Engine) findLocked(id string) *Checkpoint {
	for i := range e.list {
		if e.list[i].ID == id {
			return &e.list[i]
		}
	}
	return nil
}

// copyOf returns a heap copy so callers never alias the internal list.
func copyOf(cp Checkpoint) *Checkpoint {
	cp.Diagnostics = append([]diag.Diagnostic(nil), cp.Diagnostics...)
	return &cp
}
