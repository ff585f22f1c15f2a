package search

import (
	"sync/atomic"
	"time"
)

// Stats holds concurrency-safe run counters. Workers and the enumerator
// increment them; the reporter reads them once the stream ends.
type Stats struct {
	// FilesScanned counts files whose contents were searched.
	FilesScanned atomic.Int64

	// FilesSkipped counts files rejected by a filter (exclusion, size,
	// gitignore, symlink).
	FilesSkipped atomic.Int64

	// ReadErrors counts files that could not be read (WorkerError).
	ReadErrors atomic.Int64

	// WalkErrors counts per-entry traversal problems (EnumError).
	WalkErrors atomic.Int64

	// Matches counts individual match records.
	Matches atomic.Int64

	// BytesScanned counts content bytes handed to the pattern.
	BytesScanned atomic.Int64

	// Incomplete is set when the run was cancelled before the
	// candidate stream was exhausted.
	Incomplete atomic.Bool

	start time.Time
}

// NewStats returns Stats with the clock started.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// Elapsed returns the time since the run started.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Snapshot is a plain-value copy for rendering and logging.
type Snapshot struct {
	FilesScanned int64
	FilesSkipped int64
	ReadErrors   int64
	WalkErrors   int64
	Matches      int64
	BytesScanned int64
	Incomplete   bool
	Elapsed      time.Duration
}

// Snapshot captures the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned: s.FilesScanned.Load(),
		FilesSkipped: s.FilesSkipped.Load(),
		ReadErrors:   s.ReadErrors.Load(),
		WalkErrors:   s.WalkErrors.Load(),
		Matches:      s.Matches.Load(),
		BytesScanned: s.BytesScanned.Load(),
		Incomplete:   s.Incomplete.Load(),
		Elapsed:      s.Elapsed(),
	}
}
