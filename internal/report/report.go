// Package report renders match records and the run summary to the
// terminal. Records are flushed as they arrive so very large result sets
// never accumulate in memory.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/everyfind/everyfind/internal/search"
	"github.com/everyfind/everyfind/internal/throttle"
)

// Options controls rendering.
type Options struct {
	// Highlight colorizes the matched span within the line.
	Highlight bool

	// Color enables ANSI colors; the cmd layer sets it from TTY
	// detection.
	Color bool
}

// Reporter is the single consumer of the match stream.
type Reporter struct {
	out       io.Writer
	highlight bool

	pathColor  *color.Color
	lineColor  *color.Color
	matchColor *color.Color
	dimColor   *color.Color

	matchedFiles map[string]struct{}
	records      int64
}

// New creates a Reporter writing to out.
func New(out io.Writer, opts Options) *Reporter {
	r := &Reporter{
		out:          out,
		highlight:    opts.Highlight,
		pathColor:    color.New(color.FgGreen, color.Bold),
		lineColor:    color.New(color.FgBlue, color.Bold),
		matchColor:   color.New(color.FgRed, color.Bold),
		dimColor:     color.New(color.FgHiBlack),
		matchedFiles: make(map[string]struct{}),
	}
	for _, c := range []*color.Color{r.pathColor, r.lineColor, r.matchColor, r.dimColor} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Record renders one match and flushes it immediately.
func (r *Reporter) Record(m search.Match) {
	r.matchedFiles[m.Path] = struct{}{}
	r.records++

	if m.Line == 0 {
		// Binary-content match: no meaningful line, report the offset.
		fmt.Fprintf(r.out, "%s: %s at offset 0x%x\n",
			r.pathColor.Sprint(m.Path),
			r.dimColor.Sprint("binary match"),
			m.Offset)
		return
	}

	fmt.Fprintf(r.out, "%s:%s\n", r.pathColor.Sprint(m.Path), r.lineColor.Sprint(m.Line))

	for i, line := range m.Before {
		n := m.Line - len(m.Before) + i
		fmt.Fprintf(r.out, "%s  %s\n", r.dimColor.Sprintf("%6d:", n), line)
	}

	fmt.Fprintf(r.out, "%s  %s\n", r.lineColor.Sprintf("%6d:", m.Line), r.renderLine(m))

	for i, line := range m.After {
		fmt.Fprintf(r.out, "%s  %s\n", r.dimColor.Sprintf("%6d:", m.Line+1+i), line)
	}

	if len(m.Before) > 0 || len(m.After) > 0 {
		fmt.Fprintln(r.out, r.dimColor.Sprint("--"))
	}
}

// renderLine highlights the matched span when enabled.
func (r *Reporter) renderLine(m search.Match) string {
	text := m.LineText
	if !r.highlight || m.SpanStart >= m.SpanEnd || m.SpanEnd > len(text) {
		return text
	}
	return text[:m.SpanStart] + r.matchColor.Sprint(text[m.SpanStart:m.SpanEnd]) + text[m.SpanEnd:]
}

// MatchedFileCount returns the number of distinct files with at least
// one match.
func (r *Reporter) MatchedFileCount() int {
	return len(r.matchedFiles)
}

// Summary renders the final run summary after the stream ends. Skipped
// files are reported separately from matches so silent data loss stays
// observable even when the run succeeds.
func (r *Reporter) Summary(snap search.Snapshot, status throttle.Status) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "search summary:")
	fmt.Fprintln(r.out, "----------------------------")
	fmt.Fprintf(r.out, "elapsed:       %s\n", formatDuration(snap.Elapsed))
	fmt.Fprintf(r.out, "files scanned: %d (%s)\n", snap.FilesScanned, humanize.IBytes(uint64(max(snap.BytesScanned, 0))))
	fmt.Fprintf(r.out, "files skipped: %d filtered, %d read errors, %d walk errors\n",
		snap.FilesSkipped, snap.ReadErrors, snap.WalkErrors)
	fmt.Fprintf(r.out, "matched files: %d\n", r.MatchedFileCount())
	fmt.Fprintf(r.out, "matches:       %d\n", snap.Matches)

	state := "ok"
	switch {
	case status.Degraded:
		state = "monitoring unavailable"
	case status.Throttling:
		state = "throttled"
	}
	fmt.Fprintf(r.out, "cpu:           %.1f%%/%.1f%% %s\n", status.Load, status.Threshold, state)

	if snap.Incomplete {
		fmt.Fprintln(r.out, r.matchColor.Sprint("run incomplete: cancelled before all files were searched"))
	}
}

// formatDuration renders elapsed time as h/m/s with millisecond
// precision below one minute.
func formatDuration(d time.Duration) string {
	secs := int64(d.Seconds())
	switch {
	case secs >= 3600:
		return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
	case secs >= 60:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%d.%03ds", secs, d.Milliseconds()%1000)
	}
}
