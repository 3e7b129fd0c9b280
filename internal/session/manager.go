// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

// ErrNotInitialized is returned by Current before the first successful Acquire
// and after Release.
var ErrNotInitialized = errors.New("session: no driver has been acquired")

// State is the lifecycle position of a Manager.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// published is the handle a Manager hands out, along with how it was made.
type published struct {
	handle    driver.Handle
	opts      driver.Options
	createdAt time.Time
}

// Stats are cumulative counters for one Manager.
type Stats struct {
	Creations         int64
	Releases          int64
	IsolationResets   int64
	IsolationFailures int64
}

// Manager owns at most one live driver handle and shares it with every test unit of a run.
//
// All state changes happen under mu. The handle is also published through an atomic
// pointer so Current and State never block behind a slow browser launch; the pointer is
// set only once the handle is fully created, so readers never see a half-built session.
type Manager struct {
	factory driver.Factory
	logger  *zap.Logger

	mu      sync.Mutex
	state   atomic.Int32
	current atomic.Pointer[published]

	creations         atomic.Int64
	releases          atomic.Int64
	isolationResets   atomic.Int64
	isolationFailures atomic.Int64
}

// NewManager creates a Manager. No browser is started until Acquire.
func NewManager(factory driver.Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory: factory,
		logger:  logger.Named("session_manager"),
	}
}

// State reports the current lifecycle state without blocking.
func (m *Manager) State() State { return State(m.state.Load()) }

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Creations:         m.creations.Load(),
		Releases:          m.releases.Load(),
		IsolationResets:   m.isolationResets.Load(),
		IsolationFailures: m.isolationFailures.Load(),
	}
}

// Acquire returns the shared handle, creating it on first use.
//
// Concurrent callers during creation block until it finishes and then all receive the same
// handle. Once a handle exists, opts are ignored; a mismatch is logged with a diff. A factory
// failure leaves the manager Uninitialized and is returned as is, with no retry.
func (m *Manager) Acquire(ctx context.Context, opts driver.Options) (driver.Handle, error) {
	if p := m.current.Load(); p != nil {
		m.checkOptions(p, opts)
		return p.handle, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have finished creation while we waited on the lock.
	if p := m.current.Load(); p != nil {
		m.checkOptions(p, opts)
		return p.handle, nil
	}

	m.state.Store(int32(Initializing))
	m.logger.Info("Creating browser session.",
		zap.String("browser", string(opts.Browser)),
		zap.Bool("headless", opts.Headless),
	)

	start := time.Now()
	h, err := m.factory.Create(ctx, opts)
	if err == nil && h == nil {
		err = errors.New("factory returned a nil handle")
	}
	if err != nil {
		m.state.Store(int32(Uninitialized))
		m.logger.Error("Failed to create browser session.", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("session: acquire driver: %w", err)
	}

	m.current.Store(&published{handle: h, opts: opts, createdAt: time.Now()})
	m.state.Store(int32(Ready))
	m.creations.Add(1)
	m.logger.Info("Browser session ready.",
		zap.String("handle_id", h.ID()),
		zap.Duration("startup", time.Since(start)),
	)
	return h, nil
}

func (m *Manager) checkOptions(p *published, requested driver.Options) {
	if diff := cmp.Diff(p.opts, requested); diff != "" {
		m.logger.Warn("Acquire called with different options; returning the existing session unchanged.",
			zap.String("handle_id", p.handle.ID()),
			zap.String("diff", diff),
		)
	}
}

// Current returns the published handle, or ErrNotInitialized. It never creates a handle
// and never blocks.
func (m *Manager) Current() (driver.Handle, error) {
	p := m.current.Load()
	if p == nil {
		return nil, ErrNotInitialized
	}
	return p.handle, nil
}

// Isolation categories cleared by ResetIsolation, in order.
const (
	CategoryCookies        = "cookies"
	CategoryLocalStorage   = "local_storage"
	CategorySessionStorage = "session_storage"
)

// IsolationReport records what a ResetIsolation call managed to clear.
type IsolationReport struct {
	// Skipped is true when there was no session to reset.
	Skipped bool
	Cleared []string
	Failed  map[string]error
}

// OK reports whether every category was cleared (or there was nothing to clear).
func (r IsolationReport) OK() bool { return len(r.Failed) == 0 }

// Err joins the per-category failures, or returns nil.
func (r IsolationReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var errs []error
	for _, c := range []string{CategoryCookies, CategoryLocalStorage, CategorySessionStorage} {
		if err, ok := r.Failed[c]; ok {
			errs = append(errs, fmt.Errorf("clear %s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// ResetIsolation clears cookies and web storage on the shared handle so the next unit starts
// clean. The handle is never destroyed. Each category is attempted independently; failures are
// logged, counted and reported, but do not stop the run.
func (m *Manager) ResetIsolation(ctx context.Context) IsolationReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.current.Load()
	if p == nil {
		return IsolationReport{Skipped: true}
	}
	m.isolationResets.Add(1)

	steps := []struct {
		category string
		clear    func(context.Context) error
	}{
		{CategoryCookies, p.handle.ClearCookies},
		{CategoryLocalStorage, p.handle.ClearLocalStorage},
		{CategorySessionStorage, p.handle.ClearSessionStorage},
	}

	var report IsolationReport
	for _, s := range steps {
		if err := s.clear(ctx); err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]error)
			}
			report.Failed[s.category] = err
			m.isolationFailures.Add(1)
			m.logger.Warn("Failed to reset isolation state; the next unit may observe leftovers.",
				zap.String("handle_id", p.handle.ID()),
				zap.String("category", s.category),
				zap.Error(err),
			)
			continue
		}
		report.Cleared = append(report.Cleared, s.category)
	}
	return report
}

// Release tears down the handle through the factory. The manager returns to Uninitialized
// even when the teardown fails; that error is returned. Calling Release again is a no-op.
func (m *Manager) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.current.Load()
	if p == nil {
		return nil
	}
	m.current.Store(nil)
	m.state.Store(int32(Uninitialized))
	m.releases.Add(1)

	if err := m.factory.Destroy(ctx, p.handle); err != nil {
		m.logger.Warn("Browser session did not shut down cleanly.",
			zap.String("handle_id", p.handle.ID()),
			zap.Error(err),
		)
		return fmt.Errorf("session: release driver: %w", err)
	}
	m.logger.Info("Browser session released.",
		zap.String("handle_id", p.handle.ID()),
		zap.Duration("lifetime", time.Since(p.createdAt)),
	)
	return nil
}
