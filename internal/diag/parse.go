package diag

import (
	"regexp"
	"strconv"
	"strings"
)

// Patterns for the engine's stderr stream. The engine prefixes every
// diagnostic with a level token; anything else on stderr (progress output,
// geometry statistics) is not a diagnostic and is dropped.
var (
	levelRe = regexp.MustCompile(`(?i)^(ERROR|WARNING|ECHO):\s*(.*)`)
	lineRe  = regexp.MustCompile(`(?i)line\s+(\d+)`)
)

// Parse converts the compute unit's raw stderr text into structured
// diagnostics, preserving line order.
//
// Severity mapping: ERROR -> error, WARNING -> warning, ECHO -> info.
// An optional source line number is extracted from a "line N" substring in
// the message body. Parse is pure and always returns a list, possibly empty.
func Parse(stderr string) []Diagnostic {
	var out []Diagnostic
	for _, raw := range strings.Split(stderr, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := levelRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := Diagnostic{Message: m[2]}
		switch strings.ToUpper(m[1]) {
		case "ERROR":
			d.Severity = SeverityError
		case "WARNING":
			d.Severity = SeverityWarning
		case "ECHO":
			d.Severity = SeverityInfo
		}
		if lm := lineRe.FindStringSubmatch(m[2]); lm != nil {
			if n, err := strconv.Atoi(lm[1]); err == nil {
				d.Line = &n
			}
		}
		out = append(out, d)
	}
	return out
}
