// Package scanner enumerates candidate files for a search run.
//
// Enumeration is a lazy stream: Scan walks the directory tree in the
// background and delivers candidates and per-entry errors over a channel.
// Excluded directories are pruned before descending, so their subtrees
// are never opened or statted. Symlinks are never followed, which also
// rules out traversal cycles: every directory is visited at most once
// per real path.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/everyfind/everyfind/internal/gitignore"
)

// matcherCacheSize bounds the per-directory gitignore matcher cache.
const matcherCacheSize = 1000

// Scanner discovers candidate files beneath a root directory.
type Scanner struct {
	// matcherCache caches composite gitignore matchers by directory,
	// relative to the walk root. LRU eviction keeps memory bounded on
	// very wide trees.
	matcherCache *lru.Cache[string, *gitignore.Matcher]
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](matcherCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{matcherCache: cache}, nil
}

// Scan starts enumerating files under opts.Root and returns a stream of
// results. The channel is closed when the walk completes or ctx is
// cancelled. A root that does not exist or is not a directory is a fatal
// error returned immediately; everything after that point is reported
// in-stream and never aborts the walk.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan ScanResult, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts Options, results chan<- ScanResult) {
	excludeDirs := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		excludeDirs[d] = struct{}{}
	}
	excludeFiles := make(map[string]struct{}, len(opts.ExcludeFiles))
	for _, f := range opts.ExcludeFiles {
		excludeFiles[f] = struct{}{}
	}

	skip := func(relPath string, reason SkipReason) {
		if opts.OnSkip != nil {
			opts.OnSkip(relPath, reason)
		}
	}

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			relPath = path
		}

		if walkErr != nil {
			// Permission denied, vanished entry: report and move on.
			select {
			case results <- ScanResult{Err: &EnumError{Path: relPath, Err: walkErr}}:
			case <-ctx.Done():
				return ctx.Err()
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			// Prune by exact, case-sensitive name before descending.
			if _, excluded := excludeDirs[d.Name()]; excluded {
				return filepath.SkipDir
			}
			if opts.RespectGitignore {
				m := s.matcherFor(absRoot, filepath.Dir(relPath))
				if m.Ignored(filepath.ToSlash(relPath), true) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		// Symlinks are never followed.
		if d.Type()&fs.ModeSymlink != 0 {
			skip(relPath, SkipSymlink)
			return nil
		}

		if _, excluded := excludeFiles[d.Name()]; excluded {
			skip(relPath, SkipExcluded)
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			select {
			case results <- ScanResult{Err: &EnumError{Path: relPath, Err: infoErr}}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		// Size bounds are inclusive on the stat size.
		if opts.MinSize >= 0 && fi.Size() < opts.MinSize {
			skip(relPath, SkipSize)
			return nil
		}
		if opts.MaxSize >= 0 && fi.Size() > opts.MaxSize {
			skip(relPath, SkipSize)
			return nil
		}

		if opts.RespectGitignore {
			m := s.matcherFor(absRoot, filepath.Dir(relPath))
			if m.Ignored(filepath.ToSlash(relPath), false) {
				skip(relPath, SkipGitignore)
				return nil
			}
		}

		select {
		case results <- ScanResult{File: &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    fi.Size(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		slog.Debug("walk terminated", slog.String("root", absRoot), slog.String("error", err.Error()))
	}
}

// matcherFor returns the composite gitignore matcher in effect for files
// directly inside relDir (relative to absRoot, "." for the root). The
// composite holds the rules of every .gitignore from the root down to
// relDir, in that order, so closer rules override farther ones.
func (s *Scanner) matcherFor(absRoot, relDir string) *gitignore.Matcher {
	relDir = filepath.Clean(relDir)
	if m, ok := s.matcherCache.Get(relDir); ok {
		return m
	}

	var m *gitignore.Matcher
	if relDir == "." || relDir == string(filepath.Separator) {
		m = gitignore.New()
		s.loadGitignore(m, filepath.Join(absRoot, ".gitignore"), "")
	} else {
		parent := s.matcherFor(absRoot, filepath.Dir(relDir))
		m = parent.Clone()
		s.loadGitignore(m, filepath.Join(absRoot, relDir, ".gitignore"), filepath.ToSlash(relDir))
	}

	s.matcherCache.Add(relDir, m)
	return m
}

func (s *Scanner) loadGitignore(m *gitignore.Matcher, path, base string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := m.AddFile(path, base); err != nil {
		slog.Debug("failed to load gitignore", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// InvalidateCache clears cached gitignore matchers. Each run uses a fresh
// Scanner, so this only matters for long-lived embedders of the package.
func (s *Scanner) InvalidateCache() {
	s.matcherCache.Purge()
}
