package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"skladbot/internal/domain"
	kit "skladbot/internal/transport"
	logx "skladbot/pkg/logx"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopRequested
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var ErrNotIdle = errors.New("monitor: Run already called")

// SnapshotFetcher is the ERP boundary. Any error is treated as transient.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Notifier delivers checker output. Failures are the notifier's problem;
// the monitor only logs them.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

type Config struct {
	Schedule     Schedule
	CycleTimeout time.Duration // budget for fetch + checks, 0 means 5m
	PurgeEvery   int           // purge cache stores every N cycles, 0 means 24
}

// Monitor runs the recurring check loop.
type Monitor struct {
	fetcher  SnapshotFetcher
	notifier Notifier
	checkers []Checker
	log      logx.Logger

	cfgMu sync.Mutex
	cfg   Config

	state  atomic.Int32
	stopCh chan struct{}
	stop   sync.Once
	done   chan struct{}
}

func New(cfg Config, fetcher SnapshotFetcher, notifier Notifier, checkers []Checker, log logx.Logger) *Monitor {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 5 * time.Minute
	}
	if cfg.PurgeEvery <= 0 {
		cfg.PurgeEvery = 24
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		fetcher:  fetcher,
		notifier: notifier,
		checkers: checkers,
		log:      log,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Monitor) State() State { return State(m.state.Load()) }

// Apply updates the schedule and cycle knobs for subsequent cycles.
func (m *Monitor) Apply(cfg Config) {
	m.cfgMu.Lock()
	if !cfg.Schedule.IsZero() {
		m.cfg.Schedule = cfg.Schedule
	}
	if cfg.CycleTimeout > 0 {
		m.cfg.CycleTimeout = cfg.CycleTimeout
	}
	if cfg.PurgeEvery > 0 {
		m.cfg.PurgeEvery = cfg.PurgeEvery
	}
	m.cfgMu.Unlock()
}

func (m *Monitor) snapshotCfg() Config {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.cfg
}

// Run executes the loop until Stop or ctx cancellation. Valid only from
// Idle; a second call returns ErrNotIdle.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	defer func() {
		m.state.Store(int32(StateStopped))
		close(m.done)
	}()

	m.log.Info("monitor started", logx.String("schedule", m.snapshotCfg().Schedule.String()))

	cycle := 0
	for {
		// A stop request bars any new cycle (and with it any new fetch).
		if m.stopRequested(ctx) {
			m.log.Info("monitor stopping")
			return nil
		}

		cfg := m.snapshotCfg()
		start := time.Now()
		m.runCycle(ctx, cfg, cycle)
		cycle++

		if cycle%cfg.PurgeEvery == 0 {
			for _, c := range m.checkers {
				if n := c.Purge(time.Now()); n > 0 {
					m.log.Info("cache purged", logx.String("checker", c.Name()), logx.Int("removed", n))
				}
			}
		}

		next := cfg.Schedule.Next(start)
		if !m.waitUntil(ctx, next) {
			m.log.Info("monitor stopping")
			return nil
		}
	}
}

func (m *Monitor) stopRequested(ctx context.Context) bool {
	select {
	case <-m.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// waitUntil sleeps until the next tick. The wait is interruptible: a stop
// request or context cancellation wakes it immediately. Returns false when
// the loop should exit.
func (m *Monitor) waitUntil(ctx context.Context, next time.Time) bool {
	wait := time.Until(next)
	if wait <= 0 {
		return !m.stopRequested(ctx)
	}
	m.log.Info("waiting for next cycle", logx.Duration("wait", wait.Truncate(time.Second)))

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// runCycle performs one fetch-and-check pass. Every failure inside a cycle
// is isolated to that cycle: log, move on, rely on the schedule as backoff.
func (m *Monitor) runCycle(ctx context.Context, cfg Config, cycle int) {
	cctx, cancel := context.WithTimeout(ctx, cfg.CycleTimeout)
	defer cancel()

	start := time.Now()
	m.log.Info("check cycle started", logx.Int("cycle", cycle))

	snap, err := m.fetcher.FetchSnapshot(cctx)
	if err != nil {
		m.log.Error("snapshot fetch failed, skipping cycle", logx.Int("cycle", cycle), logx.Err(err))
		return
	}
	if len(snap.Products) == 0 {
		m.log.Warn("snapshot is empty, nothing to check", logx.Int("cycle", cycle))
		return
	}

	delivered := 0
	failed := 0
	for _, c := range m.checkers {
		now := time.Now()
		for _, n := range c.Check(cctx, snap, now) {
			if err := m.notifier.Notify(cctx, n); err != nil {
				failed++
				m.log.Warn("notification delivery failed", logx.String("checker", c.Name()), logx.Err(err))
				continue
			}
			delivered++
		}

		// An in-flight cycle finishes the current checker's work but goes
		// no further once a stop is requested.
		if m.stopRequested(ctx) {
			break
		}
	}

	m.log.Info("check cycle finished",
		logx.Int("cycle", cycle),
		logx.Int("products", len(snap.Products)),
		logx.Int("notifications", delivered),
		logx.Int("delivery_failures", failed),
		logx.Duration("took", time.Since(start).Truncate(time.Millisecond)))
}

// Stop requests termination and blocks until the loop has fully stopped or
// ctx expires. It is idempotent and safe to call before, during, or after
// Run.
func (m *Monitor) Stop(ctx context.Context) error {
	m.stop.Do(func() { close(m.stopCh) })
	m.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested))

	// Never ran: nothing to wait for.
	if m.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		return nil
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
