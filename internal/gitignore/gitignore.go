// Package gitignore implements gitignore pattern matching for the file
// enumerator. Pattern syntax follows https://git-scm.com/docs/gitignore:
// last matching rule wins, `!` re-includes, trailing `/` restricts a rule
// to directories, and rules from nested .gitignore files apply only
// beneath their own directory.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled gitignore rules. A Matcher is immutable after
// loading and safe for concurrent use.
type Matcher struct {
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	negation bool   // pattern starts with !
	dirOnly  bool   // pattern ends with /
	anchored bool   // pattern contains a non-trailing /
	base     string // slash-separated dir the rule is scoped to ("" = root)
}

// New returns an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddFile loads rules from a .gitignore file. base is the slash-separated
// path of the directory containing the file, relative to the walk root
// ("" for the root itself).
func (m *Matcher) AddFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open gitignore file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddLine(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read gitignore file: %w", err)
	}
	return nil
}

// AddLine compiles one gitignore line scoped to base. Blank lines and
// comments are dropped.
func (m *Matcher) AddLine(line, base string) {
	pattern := strings.TrimRight(line, " \t")
	pattern = strings.TrimLeft(pattern, " \t")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{base: filepath.ToSlash(base)}

	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}
	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		// A slash anywhere else also anchors: "doc/frotz" means
		// "/doc/frotz", not "**/doc/frotz".
		r.anchored = true
	}
	if pattern == "" {
		return
	}

	r.regex = regexp.MustCompile("^" + globToRegex(pattern) + "$")
	m.rules = append(m.rules, r)
}

// Len reports the number of compiled rules.
func (m *Matcher) Len() int { return len(m.rules) }

// Clone returns a Matcher with a copy of the rules. Appending rules from
// a nested .gitignore to the clone preserves precedence: closer rules are
// evaluated after farther ones and therefore win.
func (m *Matcher) Clone() *Matcher {
	c := &Matcher{rules: make([]rule, len(m.rules))}
	copy(c.rules, m.rules)
	return c
}

// Ignored reports whether the slash-separated path, relative to the walk
// root, is excluded. Rules are evaluated in order; the last match decides,
// so a later `!` rule re-includes a path ignored by an earlier rule.
func (m *Matcher) Ignored(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for _, r := range m.rules {
		rel, ok := r.scoped(path)
		if !ok {
			continue
		}
		if r.matches(rel, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

// scoped strips the rule's base from path, reporting false when the path
// lies outside the rule's directory.
func (r rule) scoped(path string) (string, bool) {
	if r.base == "" {
		return path, true
	}
	if !strings.HasPrefix(path, r.base+"/") {
		return "", false
	}
	return strings.TrimPrefix(path, r.base+"/"), true
}

func (r rule) matches(path string, isDir bool) bool {
	segs := strings.Split(path, "/")

	if r.anchored {
		if r.regex.MatchString(path) {
			return !r.dirOnly || isDir
		}
		// A matched directory ignores everything beneath it.
		for i := 1; i < len(segs); i++ {
			if r.regex.MatchString(strings.Join(segs[:i], "/")) {
				return true
			}
		}
		return false
	}

	// Unanchored rules match against any path segment.
	for i, seg := range segs {
		if !r.regex.MatchString(seg) {
			continue
		}
		if i == len(segs)-1 {
			return !r.dirOnly || isDir
		}
		return true
	}

	// Patterns containing ** still need a full-path attempt.
	if r.regex.MatchString(path) {
		return !r.dirOnly || isDir
	}
	return false
}

// globToRegex converts a gitignore glob into a regular expression body.
func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
			} else if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end > 0 {
				b.WriteString(pattern[i : i+end+1])
				i += end + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return b.String()
}
