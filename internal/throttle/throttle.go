// Package throttle provides the CPU load monitor used for work admission.
//
// A Monitor samples system CPU usage on a fixed interval and exposes the
// latest reading plus a throttle signal. The scheduler owns the Monitor
// instance and passes it by reference; there is no package-level state.
// Throttling is flow control, not a hard limit: callers delay admission
// while the signal is raised, they never reject work.
package throttle

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// SampleFunc returns the current system-wide CPU usage in percent (0-100).
type SampleFunc func(ctx context.Context) (float64, error)

// Monitor samples CPU usage in the background.
type Monitor struct {
	threshold float64
	interval  time.Duration
	sample    SampleFunc

	// load holds the latest sample as math.Float64bits; generation
	// increments once per completed sample.
	load       atomic.Uint64
	generation atomic.Uint64
	degraded   atomic.Bool

	stop     context.CancelFunc
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
}

// New creates a Monitor with the given threshold (percent) and sampling
// interval. A nil sample function uses the OS sampler.
func New(threshold float64, interval time.Duration, sample SampleFunc) *Monitor {
	if sample == nil {
		sample = osSample
	}
	return &Monitor{
		threshold: threshold,
		interval:  interval,
		sample:    sample,
	}
}

// osSample reads system-wide CPU usage without blocking on an interval:
// gopsutil computes the delta against the previous call.
func osSample(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

// Start launches the background sampler. Safe to call once; subsequent
// calls are no-ops. Stop must be called to release the goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return
	}
	m.started = true

	ctx, m.stop = context.WithCancel(ctx)
	m.done = make(chan struct{})

	// Prime the delta baseline; a failure here means the OS API is
	// unavailable and the monitor degrades to never-throttle.
	if _, err := m.sample(ctx); err != nil {
		m.degraded.Store(true)
		slog.Warn("cpu sampling unavailable, throttling disabled", slog.String("error", err.Error()))
	}

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		usage, err := m.sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.degraded.Store(true)
			continue
		}
		m.degraded.Store(false)
		m.load.Store(math.Float64bits(usage))
		m.generation.Add(1)
	}
}

// Stop terminates the sampler and waits for it to exit.
func (m *Monitor) Stop() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if !m.started {
		return
	}
	m.stop()
	<-m.done
	m.started = false
}

// CurrentLoad returns the most recent CPU usage sample in percent.
func (m *Monitor) CurrentLoad() float64 {
	return math.Float64frombits(m.load.Load())
}

// Generation returns the number of completed samples. Useful for tests
// and for log lines that want to report sampler progress.
func (m *Monitor) Generation() uint64 {
	return m.generation.Load()
}

// ShouldThrottle reports whether current load is at or above the
// threshold. When sampling is degraded it always reports false: a search
// must not fail or stall because CPU accounting is unavailable.
func (m *Monitor) ShouldThrottle() bool {
	if m.degraded.Load() {
		return false
	}
	return m.CurrentLoad() >= m.threshold
}

// Status describes the monitor for the run summary.
type Status struct {
	Load       float64
	Threshold  float64
	Throttling bool
	Degraded   bool
}

// Status returns a snapshot for display.
func (m *Monitor) Status() Status {
	return Status{
		Load:       m.CurrentLoad(),
		Threshold:  m.threshold,
		Throttling: m.ShouldThrottle(),
		Degraded:   m.degraded.Load(),
	}
}
