package scanner

import "fmt"

// FileInfo describes one candidate file produced by the enumerator.
// Ownership transfers downstream: the scheduler hands it to exactly one
// match worker and nothing retains it afterwards.
type FileInfo struct {
	// Path is the file path relative to the walk root.
	Path string

	// AbsPath is the absolute path used for I/O.
	AbsPath string

	// Size is the authoritative stat size in bytes.
	Size int64
}

// EnumError is a per-entry traversal problem (permission denied, broken
// symlink). It is recorded and the walk continues past it.
type EnumError struct {
	Path string
	Err  error
}

func (e *EnumError) Error() string {
	return fmt.Sprintf("enumeration failed at %s: %v", e.Path, e.Err)
}

func (e *EnumError) Unwrap() error { return e.Err }

// ScanResult is one item in the enumeration stream: either a candidate
// file or a per-entry error, never both.
type ScanResult struct {
	File *FileInfo
	Err  *EnumError
}

// SkipReason classifies why a file was filtered out of the candidate set.
type SkipReason int

const (
	// SkipExcluded means an excluded directory or file name matched.
	SkipExcluded SkipReason = iota
	// SkipSize means the stat size fell outside [MinSize, MaxSize].
	SkipSize
	// SkipGitignore means an applicable .gitignore rule excluded the file.
	SkipGitignore
	// SkipSymlink means the entry is a symlink, which is never followed.
	SkipSymlink
)

// String returns the reason label used in logs.
func (r SkipReason) String() string {
	switch r {
	case SkipExcluded:
		return "excluded"
	case SkipSize:
		return "size"
	case SkipGitignore:
		return "gitignore"
	case SkipSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Options controls one enumeration pass. Enumeration is not restartable;
// a fresh Scan call re-walks from scratch.
type Options struct {
	// Root is the directory to walk.
	Root string

	// MinSize and MaxSize bound the stat size, inclusive. A negative
	// value leaves that bound open.
	MinSize int64
	MaxSize int64

	// ExcludeDirs are directory names pruned before descending
	// (exact, case-sensitive match on the name). Pruned subtrees are
	// never opened and never statted.
	ExcludeDirs []string

	// ExcludeFiles are file names skipped during the walk.
	ExcludeFiles []string

	// RespectGitignore applies .gitignore rules found along the path
	// from root to each file.
	RespectGitignore bool

	// OnSkip, when set, is invoked for each file rejected by a filter.
	// It is called from the walk goroutine.
	OnSkip func(path string, reason SkipReason)
}
