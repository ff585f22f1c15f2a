// Package query compiles the raw search input into an executable Pattern.
//
// A Pattern is a closed variant over three modes: literal text, regular
// expression, and hexadecimal byte sequence. Exactly one variant is active;
// a compiled Pattern is immutable and safe to share across workers.
package query

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how the raw input is interpreted.
type Mode int

const (
	// ModeText matches the input byte-for-byte, case-sensitive.
	ModeText Mode = iota
	// ModeRegex compiles the input as a regular expression.
	ModeRegex
	// ModeHex decodes the input as a hexadecimal byte sequence.
	ModeHex
)

// String returns the mode name used in banners and logs.
func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeRegex:
		return "regex"
	case ModeHex:
		return "hex"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// CompileError reports a pattern that could not be compiled. It is fatal:
// no scanning starts when compilation fails.
type CompileError struct {
	Mode  Mode
	Input string
	Cause error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Mode, e.Input, e.Cause)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Pattern is a compiled search pattern.
type Pattern struct {
	mode    Mode
	raw     string
	literal []byte         // ModeText and ModeHex
	re      *regexp.Regexp // ModeRegex
}

// Compile turns raw input and a mode into a Pattern. Same input and mode
// always yield an equivalent Pattern; there are no side effects.
func Compile(raw string, mode Mode) (*Pattern, error) {
	switch mode {
	case ModeText:
		if raw == "" {
			return nil, &CompileError{Mode: mode, Input: raw, Cause: fmt.Errorf("empty pattern")}
		}
		return &Pattern{mode: mode, raw: raw, literal: []byte(raw)}, nil

	case ModeRegex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, &CompileError{Mode: mode, Input: raw, Cause: err}
		}
		return &Pattern{mode: mode, raw: raw, re: re}, nil

	case ModeHex:
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, raw)
		if cleaned == "" {
			return nil, &CompileError{Mode: mode, Input: raw, Cause: fmt.Errorf("empty hex value")}
		}
		if len(cleaned)%2 != 0 {
			return nil, &CompileError{Mode: mode, Input: raw, Cause: fmt.Errorf("odd number of hex digits")}
		}
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, &CompileError{Mode: mode, Input: raw, Cause: err}
		}
		return &Pattern{mode: mode, raw: raw, literal: decoded}, nil

	default:
		return nil, &CompileError{Mode: mode, Input: raw, Cause: fmt.Errorf("unknown mode")}
	}
}

// Mode returns the active variant.
func (p *Pattern) Mode() Mode { return p.mode }

// Raw returns the original user input.
func (p *Pattern) Raw() string { return p.raw }

// Bytes returns the decoded byte sequence for hex patterns, or the
// literal bytes for text patterns. Nil for regex patterns.
func (p *Pattern) Bytes() []byte { return p.literal }

// Span is one match location within a buffer: [Start, End) byte offsets.
type Span struct {
	Start int
	End   int
}

// FindAll reports every match of the pattern within buf, in ascending
// offset order.
//
// Hex patterns report overlapping matches: the scan resumes at start+1
// rather than past the end of the match, favoring completeness over
// match-count minimalism. Text and regex matches are non-overlapping.
func (p *Pattern) FindAll(buf []byte) []Span {
	switch p.mode {
	case ModeRegex:
		locs := p.re.FindAllIndex(buf, -1)
		if len(locs) == 0 {
			return nil
		}
		spans := make([]Span, 0, len(locs))
		for _, loc := range locs {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
		return spans

	case ModeText:
		return findLiteral(buf, p.literal, false)

	case ModeHex:
		return findLiteral(buf, p.literal, true)

	default:
		return nil
	}
}

// findLiteral scans buf for needle. With overlap, the next scan starts
// one byte after the previous match start; without it, past the match end.
func findLiteral(buf, needle []byte, overlap bool) []Span {
	if len(needle) == 0 || len(needle) > len(buf) {
		return nil
	}

	var spans []Span
	pos := 0
	for pos <= len(buf)-len(needle) {
		idx := bytes.Index(buf[pos:], needle)
		if idx < 0 {
			break
		}
		start := pos + idx
		spans = append(spans, Span{Start: start, End: start + len(needle)})
		if overlap {
			pos = start + 1
		} else {
			pos = start + len(needle)
		}
	}
	return spans
}
