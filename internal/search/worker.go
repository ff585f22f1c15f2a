package search

import (
	"bytes"
	"os"

	"github.com/everyfind/everyfind/internal/query"
)

// binarySniffLen is how many leading bytes are examined for a NUL byte
// when classifying a file as binary.
const binarySniffLen = 8 * 1024

// truncationMark is appended to displayed lines cut at MaxLineLength.
const truncationMark = "..."

// scanFile opens one candidate and extracts match records.
//
// Text and regex patterns over binary content still match at the byte
// level, but the records degrade to byte-offset context: there is no
// meaningful line. Hex patterns always operate on the raw bytes. Matches
// are returned in ascending line/offset order.
func scanFile(relPath, absPath string, pattern *query.Pattern, ctxLines, maxLineLen int) ([]Match, int64, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, 0, &WorkerError{Path: relPath, Err: err}
	}

	binary := isBinary(data)

	if pattern.Mode() == query.ModeHex || binary {
		return scanBytes(relPath, data, pattern, binary), int64(len(data)), nil
	}
	return scanLines(relPath, data, pattern, ctxLines, maxLineLen), int64(len(data)), nil
}

// isBinary reports whether data contains a NUL byte within the sniff
// window.
func isBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

// scanBytes matches against the raw buffer and emits byte-offset records.
func scanBytes(relPath string, data []byte, pattern *query.Pattern, binary bool) []Match {
	spans := pattern.FindAll(data)
	if len(spans) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(spans))
	for _, sp := range spans {
		matches = append(matches, Match{
			Path:      relPath,
			Offset:    int64(sp.Start),
			SpanStart: sp.Start,
			SpanEnd:   sp.End,
			Binary:    binary,
		})
	}
	return matches
}

// scanLines splits text content into lines, matches each line, and builds
// context windows clipped at the file boundaries.
func scanLines(relPath string, data []byte, pattern *query.Pattern, ctxLines, maxLineLen int) []Match {
	lines, offsets := splitLines(data)

	var matches []Match
	for i, line := range lines {
		spans := pattern.FindAll(line)
		for _, sp := range spans {
			text, truncated := truncate(string(line), maxLineLen)
			spanStart, spanEnd := clampSpan(sp, len(text))

			m := Match{
				Path:      relPath,
				Line:      i + 1,
				Offset:    offsets[i],
				SpanStart: spanStart,
				SpanEnd:   spanEnd,
				LineText:  text,
				Truncated: truncated,
			}

			// Context windows clip at the file start and end; a match
			// on the first line carries no "before" lines at all.
			for j := max(0, i-ctxLines); j < i; j++ {
				s, _ := truncate(string(lines[j]), maxLineLen)
				m.Before = append(m.Before, s)
			}
			for j := i + 1; j <= min(len(lines)-1, i+ctxLines); j++ {
				s, _ := truncate(string(lines[j]), maxLineLen)
				m.After = append(m.After, s)
			}

			matches = append(matches, m)
		}
	}
	return matches
}

// splitLines returns the content lines (without terminators) and the byte
// offset of each line start. A trailing newline does not produce an empty
// final line.
func splitLines(data []byte) ([][]byte, []int64) {
	var lines [][]byte
	var offsets []int64

	start := 0
	for start <= len(data) {
		idx := bytes.IndexByte(data[start:], '\n')
		if idx < 0 {
			if start < len(data) {
				lines = append(lines, trimCR(data[start:]))
				offsets = append(offsets, int64(start))
			}
			break
		}
		lines = append(lines, trimCR(data[start:start+idx]))
		offsets = append(offsets, int64(start))
		start += idx + 1
	}
	return lines, offsets
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// truncate cuts s to maxLen bytes for display. Zero or negative maxLen
// disables truncation.
func truncate(s string, maxLen int) (string, bool) {
	if maxLen <= 0 || len(s) <= maxLen {
		return s, false
	}
	return s[:maxLen] + truncationMark, true
}

// clampSpan bounds a match span to the displayed text so highlighting
// of a truncated line cannot index past the end.
func clampSpan(sp query.Span, textLen int) (int, int) {
	start, end := sp.Start, sp.End
	if start > textLen {
		start = textLen
	}
	if end > textLen {
		end = textLen
	}
	return start, end
}
