package history

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fred913/scadstudio/internal/diag"
)

// ChangeType records what caused a checkpoint.
type ChangeType string

const (
	ChangeUser     ChangeType = "user"
	ChangeAI       ChangeType = "ai"
	ChangeFileLoad ChangeType = "fileload"
	ChangeUndo     ChangeType = "undo"
	ChangeRedo     ChangeType = "redo"
)

// Valid reports whether t is one of the known change types.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeUser, ChangeAI, ChangeFileLoad, ChangeUndo, ChangeRedo:
		return true
	}
	return false
}

// Checkpoint is an immutable snapshot of editor source plus metadata.
type Checkpoint struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Code        string            `json:"code"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Description string            `json:"description"`
	ChangeType  ChangeType        `json:"changeType"`
}

// Diff is the computed difference between two checkpoints. Diffs are
// produced on demand and never stored.
type Diff struct {
	FromID       string `json:"fromId"`
	ToID         string `json:"toId"`
	Diff         string `json:"diff"`
	AddedLines   int    `json:"addedLines"`
	RemovedLines int    `json:"removedLines"`
}

// MarshalDiagnostics serializes a diagnostic list for persistence.
func MarshalDiagnostics(list []diag.Diagnostic) (string, error) {
	if len(list) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics: %w", err)
	}
	return string(data), nil
}

// UnmarshalDiagnostics parses a persisted diagnostic list.
func UnmarshalDiagnostics(data string) ([]diag.Diagnostic, error) {
	if data == "" {
		return nil, nil
	}
	var list []diag.Diagnostic
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("unmarshal diagnostics: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

// IDGenerator produces checkpoint ids. Implemented by UUIDv7Generator
// (production) and SeqGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 checkpoint ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so a sorted id
// listing follows creation order, which is convenient when inspecting the
// checkpoint archive.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SeqGenerator returns "cp-1", "cp-2", ... for deterministic tests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqGenerator struct {
	mu sync.Mutex
	n  int
}

// Generate returns the next sequential id.
func (g *SeqGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("cp-%d", g.n)
}
