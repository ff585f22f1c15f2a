// Package search implements the search orchestration engine: a throttled,
// parallel pipeline that turns a compiled pattern and a candidate stream
// into match records.
package search

import "fmt"

// Match is one reported occurrence of the pattern. Immutable once
// emitted; the reporter owns it afterwards.
type Match struct {
	// Path is the matched file, relative to the search root.
	Path string

	// Line is the 1-based line number. Zero for binary-content matches,
	// where Offset locates the match instead.
	Line int

	// Offset is the byte offset of the match within the file. Set for
	// binary and hex matches; for line matches it is the offset of the
	// line start.
	Offset int64

	// SpanStart and SpanEnd delimit the matched bytes within LineText
	// (line matches) or within the file (binary matches).
	SpanStart int
	SpanEnd   int

	// LineText is the matched line, possibly truncated for display.
	// Empty for binary-content matches.
	LineText string

	// Before and After hold surrounding context lines, clipped at file
	// boundaries. Nil for binary-content matches.
	Before []string
	After  []string

	// Binary marks a file that hit the NUL-byte heuristic.
	Binary bool

	// Truncated marks a line cut to the display length limit.
	// Truncation never affects match detection.
	Truncated bool
}

// WorkerError is a per-file read problem. It is recorded as a skipped
// file and never aborts the run.
type WorkerError struct {
	Path string
	Err  error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("failed to scan %s: %v", e.Path, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// FatalError aborts the entire run: the root is missing or unwalkable,
// or the pipeline could not be set up. Distinct from per-file skips.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("search aborted: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
