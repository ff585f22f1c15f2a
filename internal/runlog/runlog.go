// Package runlog writes the optional search log file (--log): a
// timestamped record of run parameters, every match and skip event, and
// a trailing summary block. This is user-facing output, separate from
// the slog diagnostics.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/everyfind/everyfind/internal/search"
	"github.com/everyfind/everyfind/internal/throttle"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// Log appends timestamped events to the run log file. Safe for
// concurrent use; a disabled Log discards everything.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Disabled returns a Log that drops all events.
func Disabled() *Log {
	return &Log{}
}

// Create opens a new run log in dir, named everyfind_YYYYMMDD_HHMMSS.log.
func Create(dir string, now time.Time) (*Log, error) {
	path := filepath.Join(dir, fmt.Sprintf("everyfind_%s.log", now.Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}

	l := &Log{f: f, path: path}
	l.writef("# everyfind search log")
	l.writef("# started: %s", now.Format(timestampLayout))
	l.writef("# --------------------------------------------")
	return l, nil
}

// Enabled reports whether events are being written.
func (l *Log) Enabled() bool { return l.f != nil }

// Path returns the log file location, empty when disabled.
func (l *Log) Path() string { return l.path }

// Eventf records one timestamped line.
func (l *Log) Eventf(format string, args ...any) {
	if l.f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.f, "[%s] %s\n", time.Now().Format(timestampLayout), fmt.Sprintf(format, args...))
}

// Params records the effective run parameters in the header.
func (l *Log) Params(params [][2]string) {
	for _, p := range params {
		l.Eventf("param: %s = %s", p[0], p[1])
	}
}

// Match records one match event: file path, line or offset, and the
// matched text.
func (l *Log) Match(m search.Match) {
	if l.f == nil {
		return
	}
	if m.Line > 0 {
		text := m.LineText
		if m.SpanEnd <= len(text) && m.SpanStart <= m.SpanEnd {
			text = text[m.SpanStart:m.SpanEnd]
		}
		l.Eventf("match: %s:%d: %s", m.Path, m.Line, text)
		return
	}
	l.Eventf("match: %s: offset 0x%x (binary)", m.Path, m.Offset)
}

// Skip records a skipped file or traversal error.
func (l *Log) Skip(path, reason string) {
	l.Eventf("skip: %s (%s)", path, reason)
}

// Summary writes the trailing summary block and flushes the file. The
// Log stays usable for a final Close.
func (l *Log) Summary(snap search.Snapshot, status throttle.Status) {
	if l.f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	w := func(format string, args ...any) {
		_, _ = fmt.Fprintf(l.f, format+"\n", args...)
	}
	w("# --------------------------------------------")
	w("# finished: %s", time.Now().Format(timestampLayout))
	w("# elapsed: %.3fs", snap.Elapsed.Seconds())
	w("# files scanned: %d", snap.FilesScanned)
	w("# files skipped: %d filtered, %d read errors, %d walk errors",
		snap.FilesSkipped, snap.ReadErrors, snap.WalkErrors)
	w("# matches: %d", snap.Matches)
	w("# bytes scanned: %d", snap.BytesScanned)
	w("# cpu: %.1f%%/%.1f%% (throttling: %v, degraded: %v)",
		status.Load, status.Threshold, status.Throttling, status.Degraded)
	if snap.Incomplete {
		w("# run incomplete: cancelled before all files were searched")
	}
	w("# ============================================")
	_ = l.f.Sync()
}

func (l *Log) writef(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.f, format+"\n", args...)
}

// Close releases the log file.
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
