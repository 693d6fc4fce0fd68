package diag

import (
	"encoding/json"
	"fmt"
)

// Severity classifies a diagnostic by importance.
type Severity int

const (
	// SeverityError indicates the compile failed or produced no usable output.
	SeverityError Severity = iota
	// SeverityWarning indicates a recoverable problem in the source.
	SeverityWarning
	// SeverityInfo carries echo/trace output surfaced to the user.
	SeverityInfo
)

// String returns the lowercase wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return "unknown"
}

// MarshalJSON serializes the severity as its lowercase name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a lowercase severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity %q", name)
	}
	return nil
}

// Diagnostic is a single structured message extracted from the compute
// unit's error stream.
//
// Line and Col are nil when the engine did not report a position. This
// parser never populates Col; it exists because other producers (the
// editor's own linter) attach column information to the same type.
//
// Diagnostics are immutable once created.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Line     *int     `json:"line,omitempty"`
	Col      *int     `json:"col,omitempty"`
	Message  string   `json:"message"`
}

// String formats the diagnostic for log and error output.
func (d Diagnostic) String() string {
	if d.Line != nil {
		return fmt.Sprintf("%s (line %d): %s", d.Severity, *d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// HasErrors reports whether any diagnostic in the list is error severity.
func HasErrors(list []Diagnostic) bool {
	for _, d := range list {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics, preserving order.
func Errors(list []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range list {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// FormatList renders diagnostics one per line for inclusion in error
// messages. Returns the empty string for an empty list.
func FormatList(list []Diagnostic) string {
	out := ""
	for i, d := range list {
		if i > 0 {
			out += "\n"
		}
		out += d.String()
	}
	return out
}
