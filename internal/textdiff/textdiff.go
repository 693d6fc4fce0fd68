// Package textdiff computes line-level diffs via the classic
// longest-common-subsequence dynamic program.
//
// The algorithm is O(m*n) in time and space, which is fine for
// editor-sized inputs; a line-count guard refuses pathological ones.
package textdiff

import (
	"fmt"
	"strings"
)

// DefaultMaxLines bounds each input side. A checkpoint diff is an editor
// artifact; multi-megabyte inputs indicate a caller bug, not a use case.
const DefaultMaxLines = 20000

// ErrTooLarge is returned when an input side exceeds the line guard.
type ErrTooLarge struct {
	Lines, Max int
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("diff input too large (%d lines, max %d)", e.Lines, e.Max)
}

// Result is a unified-style diff plus line counts.
type Result struct {
	// Text holds one prefixed line per input line: "-" for removed,
	// "+" for added, " " for common context.
	Text    string
	Added   int
	Removed int
}

// Lines splits text for diffing. A trailing newline does not produce a
// phantom empty line beyond what the editor shows.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}

// Diff computes the line diff from one sequence to another with the
// default size guard.
func Diff(from, to []string) (Result, error) {
	return DiffMax(from, to, DefaultMaxLines)
}

// DiffMax is Diff with an explicit per-side line bound.
//
// Tie-breaking is deterministic: when several longest common subsequences
// exist, the backtrack prefers consuming lines of `from` first, so
// identical inputs always produce identical output.
func DiffMax(from, to []string, maxLines int) (Result, error) {
	if n := len(from); n > maxLines {
		return Result{}, &ErrTooLarge{Lines: n, Max: maxLines}
	}
	if n := len(to); n > maxLines {
		return Result{}, &ErrTooLarge{Lines: n, Max: maxLines}
	}

	common := lcs(from, to)

	// Merge pass: walk both sequences alongside the common subsequence.
	// Source-only lines before the next common line come out as "-",
	// target-only lines as "+", then the common line itself as context.
	var b strings.Builder
	var added, removed int
	i, j := 0, 0
	emit := func(prefix string, line string) {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, c := range common {
		for i < len(from) && from[i] != c {
			emit("-", from[i])
			removed++
			i++
		}
		for j < len(to) && to[j] != c {
			emit("+", to[j])
			added++
			j++
		}
		emit(" ", c)
		i++
		j++
	}
	for ; i < len(from); i++ {
		emit("-", from[i])
		removed++
	}
	for ; j < len(to); j++ {
		emit("+", to[j])
		added++
	}

	text := b.String()
	text = strings.TrimSuffix(text, "\n")
	return Result{Text: text, Added: added, Removed: removed}, nil
}

// lcs returns the longest common subsequence of a and b, backtracked from
// an explicit (m+1)x(n+1) DP table.
func lcs(a, b []string) []string {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	out := make([]string, dp[m][n])
	k := dp[m][n]
	i, j := m, n
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			k--
			out[k] = a[i-1]
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			// Equal table values consume from a first, matching the
			// forward fill above. Keeps results reproducible.
			i--
		default:
			j--
		}
	}
	return out
}
