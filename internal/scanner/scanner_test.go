package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file with parent directories.
func writeFile(t *testing.T, root, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// defaultOptions returns open size bounds for root.
func defaultOptions(root string) Options {
	return Options{Root: root, MinSize: -1, MaxSize: -1}
}

// collect drains the scan stream into candidate paths and errors.
func collect(t *testing.T, s *Scanner, opts Options) (paths []string, errs []*EnumError) {
	t.Helper()
	results, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)
	for r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		paths = append(paths, filepath.ToSlash(r.File.Path))
	}
	sort.Strings(paths)
	return paths, errs
}

func TestScanBasic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("alpha"))
	writeFile(t, root, "sub/b.txt", []byte("beta"))

	s, err := New()
	require.NoError(t, err)

	paths, errs := collect(t, s, defaultOptions(root))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, paths)
}

func TestScanRootMissing(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), defaultOptions(filepath.Join(t.TempDir(), "missing")))
	assert.Error(t, err)
}

func TestScanRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.txt", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), defaultOptions(filepath.Join(root, "f.txt")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestExcludedDirNeverDescended(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", []byte("x"))
	writeFile(t, root, ".git/objects/pack/huge.bin", []byte("x"))
	writeFile(t, root, "nested/.git/config", []byte("x"))
	writeFile(t, root, "nested/ok.txt", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.ExcludeDirs = []string{".git"}
	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{"keep.txt", "nested/ok.txt"}, paths)
}

func TestExcludedDirNameIsCaseSensitive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Target/a.txt", []byte("x"))
	writeFile(t, root, "target/b.txt", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.ExcludeDirs = []string{"target"}
	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{"Target/a.txt"}, paths)
}

func TestExcludedFileName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "secret.pem", []byte("x"))
	writeFile(t, root, "sub/secret.pem", []byte("x"))
	writeFile(t, root, "ok.txt", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	var mu sync.Mutex
	var skipped []SkipReason
	opts := defaultOptions(root)
	opts.ExcludeFiles = []string{"secret.pem"}
	opts.OnSkip = func(path string, reason SkipReason) {
		mu.Lock()
		skipped = append(skipped, reason)
		mu.Unlock()
	}

	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{"ok.txt"}, paths)
	assert.Equal(t, []SkipReason{SkipExcluded, SkipExcluded}, skipped)
}

func TestSizeBoundsInclusive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "size9.txt", make([]byte, 9))
	writeFile(t, root, "size10.txt", make([]byte, 10))
	writeFile(t, root, "size20.txt", make([]byte, 20))
	writeFile(t, root, "size21.txt", make([]byte, 21))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.MinSize = 10
	opts.MaxSize = 20
	paths, _ := collect(t, s, opts)

	// Exactly min and exactly max are included; one byte outside is not.
	assert.Equal(t, []string{"size10.txt", "size20.txt"}, paths)
}

func TestGitignoreRespected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("*.log\n"))
	writeFile(t, root, "app.log", []byte("x"))
	writeFile(t, root, "app.txt", []byte("x"))
	writeFile(t, root, "sub/deep.log", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.RespectGitignore = true
	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{".gitignore", "app.txt"}, paths)
}

func TestGitignoreIgnoredWhenDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("*.log\n"))
	writeFile(t, root, "app.log", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	paths, _ := collect(t, s, defaultOptions(root))
	assert.Contains(t, paths, "app.log")
}

func TestGitignoreNestedNegationOverridesRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("*.dat\n"))
	writeFile(t, root, "top.dat", []byte("x"))
	writeFile(t, root, "sub/.gitignore", []byte("!special.dat\n"))
	writeFile(t, root, "sub/special.dat", []byte("x"))
	writeFile(t, root, "sub/other.dat", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.RespectGitignore = true
	paths, _ := collect(t, s, opts)

	// The closer rule re-includes special.dat; everything else stays out.
	assert.Contains(t, paths, "sub/special.dat")
	assert.NotContains(t, paths, "top.dat")
	assert.NotContains(t, paths, "sub/other.dat")
}

func TestGitignoreDirectoryPruned(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("build/\n"))
	writeFile(t, root, "build/out.txt", []byte("x"))
	writeFile(t, root, "src/in.txt", []byte("x"))

	s, err := New()
	require.NoError(t, err)

	opts := defaultOptions(root)
	opts.RespectGitignore = true
	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{".gitignore", "src/in.txt"}, paths)
}

func TestSymlinksNeverFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	root := t.TempDir()
	writeFile(t, root, "real/a.txt", []byte("x"))
	// A directory symlink pointing back up would loop if followed.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "a.txt"), filepath.Join(root, "link.txt")))

	s, err := New()
	require.NoError(t, err)

	var mu sync.Mutex
	skips := map[SkipReason]int{}
	opts := defaultOptions(root)
	opts.OnSkip = func(path string, reason SkipReason) {
		mu.Lock()
		skips[reason]++
		mu.Unlock()
	}

	paths, _ := collect(t, s, opts)
	assert.Equal(t, []string{"real/a.txt"}, paths)
	assert.Equal(t, 2, skips[SkipSymlink])
}

func TestUnreadableDirYieldsErrorAndContinues(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}

	root := t.TempDir()
	writeFile(t, root, "locked/hidden.txt", []byte("x"))
	writeFile(t, root, "open/visible.txt", []byte("x"))
	require.NoError(t, os.Chmod(filepath.Join(root, "locked"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "locked"), 0o755) })

	s, err := New()
	require.NoError(t, err)

	paths, errs := collect(t, s, defaultOptions(root))
	assert.Equal(t, []string{"open/visible.txt"}, paths)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Path, "locked")
}

func TestScanCancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFile(t, root, filepath.Join("d", string(rune('a'+i%26))+".txt"), []byte("x"))
	}

	s, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	results, err := s.Scan(ctx, defaultOptions(root))
	require.NoError(t, err)

	cancel()
	// The stream must terminate; draining must not hang.
	for range results {
	}
}
