package config

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize parses a human-readable size such as "100", "1K", "2M" or
// "1.5G" into a byte count. Suffixes are case-insensitive and use
// 1024-based multipliers, matching the --min-size/--max-size flags.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size value")
	}

	// Bare suffixes like "1K" mean kibibytes here; spell them out for
	// humanize, which reserves "K" for SI kilobytes.
	if last := s[len(s)-1]; last == 'k' || last == 'K' || last == 'm' || last == 'M' || last == 'g' || last == 'G' {
		s = s[:len(s)-1] + strings.ToUpper(string(last)) + "iB"
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", s, err)
	}
	return n, nil
}

// FormatSize renders a byte count for the run summary, e.g. "1.2 MiB".
func FormatSize(n uint64) string {
	return humanize.IBytes(n)
}
