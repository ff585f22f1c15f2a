package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/everyfind/everyfind/internal/query"
	"github.com/everyfind/everyfind/internal/scanner"
	"github.com/everyfind/everyfind/internal/throttle"
)

// defaultThrottleRetries bounds how many delay cycles a unit of work can
// wait on the load monitor before being admitted anyway. Liveness wins
// over strict throttling: a run must terminate under sustained load.
const defaultThrottleRetries = 50

// Options configures one search run.
type Options struct {
	// Root is the directory to search.
	Root string

	// Pattern is the compiled search pattern, shared read-only across
	// all workers.
	Pattern *query.Pattern

	// MinSize and MaxSize bound candidate file sizes, inclusive.
	// Negative means unbounded.
	MinSize int64
	MaxSize int64

	// ExcludeDirs and ExcludeFiles name entries pruned during
	// enumeration.
	ExcludeDirs  []string
	ExcludeFiles []string

	// RespectGitignore applies .gitignore rules during enumeration.
	RespectGitignore bool

	// Parallel selects the worker pool; when false candidates are
	// processed one at a time in enumeration order.
	Parallel bool

	// Workers is the pool size when Parallel is set. Zero or negative
	// falls back to the caller's configured default.
	Workers int

	// ContextLines is the context window radius around a match line.
	ContextLines int

	// MaxLineLength truncates displayed lines; it never affects match
	// detection.
	MaxLineLength int

	// Delay is the admission delay applied while the load monitor
	// reports throttling.
	Delay time.Duration

	// ThrottleRetries overrides the bounded retry count. Zero uses the
	// default.
	ThrottleRetries int

	// OnSkip, when set, observes each file skipped during enumeration.
	// It runs on the enumeration goroutine and must be cheap.
	OnSkip func(path string, reason string)
}

// Engine coordinates enumeration, admission control, and match workers.
type Engine struct {
	opts    Options
	monitor *throttle.Monitor
	stats   *Stats
	retries int
}

// New creates an Engine. The monitor is owned by the caller and may be
// shared with the reporter for status display; the engine only reads it.
func New(opts Options, monitor *throttle.Monitor) *Engine {
	retries := opts.ThrottleRetries
	if retries <= 0 {
		retries = defaultThrottleRetries
	}
	return &Engine{
		opts:    opts,
		monitor: monitor,
		stats:   NewStats(),
		retries: retries,
	}
}

// Stats returns the live run counters.
func (e *Engine) Stats() *Stats { return e.stats }

// Run starts the search and returns the match stream. The channel closes
// when every admitted candidate has been processed or the context is
// cancelled; in the latter case in-flight files still finish and the
// stats mark the run incomplete.
//
// Within a single file, matches arrive in ascending line/offset order.
// Sequential mode additionally preserves enumeration order across files;
// parallel mode does not, since files complete in variable order.
//
// A root that cannot be enumerated at all is a *FatalError returned
// immediately. Per-file and per-entry failures are folded into the stats
// and never interrupt the run.
func (e *Engine) Run(ctx context.Context) (<-chan Match, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	candidates, err := sc.Scan(ctx, scanner.Options{
		Root:             e.opts.Root,
		MinSize:          e.opts.MinSize,
		MaxSize:          e.opts.MaxSize,
		ExcludeDirs:      e.opts.ExcludeDirs,
		ExcludeFiles:     e.opts.ExcludeFiles,
		RespectGitignore: e.opts.RespectGitignore,
		OnSkip: func(path string, reason scanner.SkipReason) {
			e.stats.FilesSkipped.Add(1)
			slog.Debug("file skipped", slog.String("path", path), slog.String("reason", reason.String()))
			if e.opts.OnSkip != nil {
				e.opts.OnSkip(path, reason.String())
			}
		},
	})
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	out := make(chan Match, 128)
	go func() {
		defer close(out)
		if e.opts.Parallel {
			e.runParallel(ctx, candidates, out)
		} else {
			e.runSequential(ctx, candidates, out)
		}
		if ctx.Err() != nil {
			e.stats.Incomplete.Store(true)
		}
	}()
	return out, nil
}

// runParallel fans candidates out to a fixed-size pool. Each worker pulls
// from the shared stream, so file completion order is nondeterministic.
func (e *Engine) runParallel(ctx context.Context, candidates <-chan scanner.ScanResult, out chan<- Match) {
	workers := e.opts.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case res, ok := <-candidates:
					if !ok {
						return nil
					}
					e.handle(gctx, res, out)
				}
			}
		})
	}
	// Workers never return errors; per-file failures are stats entries.
	_ = g.Wait()
}

// runSequential processes candidates one at a time in enumeration order.
func (e *Engine) runSequential(ctx context.Context, candidates <-chan scanner.ScanResult, out chan<- Match) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-candidates:
			if !ok {
				return
			}
			e.handle(ctx, res, out)
		}
	}
}

// handle admits one enumeration result through the throttle gate and
// scans it. Enumeration errors are folded into the stats here so the
// candidate stream stays a single channel.
func (e *Engine) handle(ctx context.Context, res scanner.ScanResult, out chan<- Match) {
	if res.Err != nil {
		e.stats.WalkErrors.Add(1)
		slog.Debug("enumeration error", slog.String("path", res.Err.Path), slog.String("error", res.Err.Error()))
		return
	}

	e.admit(ctx)

	matches, bytesScanned, err := scanFile(
		res.File.Path, res.File.AbsPath,
		e.opts.Pattern, e.opts.ContextLines, e.opts.MaxLineLength,
	)
	if err != nil {
		e.stats.ReadErrors.Add(1)
		slog.Debug("file unreadable", slog.String("path", res.File.Path), slog.String("error", err.Error()))
		return
	}

	e.stats.FilesScanned.Add(1)
	e.stats.BytesScanned.Add(bytesScanned)

	for _, m := range matches {
		select {
		case out <- m:
			e.stats.Matches.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

// admit blocks while the load monitor reports throttling, one delay per
// retry, up to the bounded retry count. After that the work is admitted
// regardless, so sustained high load can slow a run but never wedge it.
func (e *Engine) admit(ctx context.Context) {
	if e.monitor == nil || e.opts.Delay <= 0 {
		return
	}
	for i := 0; i < e.retries && e.monitor.ShouldThrottle(); i++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.opts.Delay):
		}
	}
}
