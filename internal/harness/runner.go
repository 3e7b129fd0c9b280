// internal/harness/runner.go
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/session"
)

// Env is what a test unit gets to work with.
type Env struct {
	UnitID string
	Handle driver.Handle
	Logger *zap.Logger
}

// UnitFunc is the body of one test unit.
type UnitFunc func(ctx context.Context, env Env) error

// Unit is a named UnitFunc.
type Unit struct {
	Name string
	Fn   UnitFunc
}

// UnitResult records how one unit went.
type UnitResult struct {
	ID       string
	Name     string
	Err      error
	Duration time.Duration
	// Screenshot is the path of the failure screenshot, if one was taken.
	Screenshot string
	Isolation  session.IsolationReport
}

// Passed reports whether the unit ran without error.
func (r UnitResult) Passed() bool { return r.Err == nil }

// Options configure a Runner.
type Options struct {
	Driver              driver.Options
	ScreenshotOnFailure bool
	ScreenshotDir       string
}

// Runner drives test units against one session manager: acquire once, run each unit on the
// shared handle, reset isolation between units, release at the end.
type Runner struct {
	manager *session.Manager
	opts    Options
	logger  *zap.Logger
}

// NewRunner creates a Runner over manager.
func NewRunner(manager *session.Manager, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{manager: manager, opts: opts, logger: logger.Named("runner")}
}

// Manager returns the session manager the runner drives.
func (r *Runner) Manager() *session.Manager { return r.manager }

// Setup acquires the shared browser session.
func (r *Runner) Setup(ctx context.Context) error {
	if _, err := r.manager.Acquire(ctx, r.opts.Driver); err != nil {
		return fmt.Errorf("harness setup: %w", err)
	}
	return nil
}

// RunUnit runs fn on the shared handle and resets isolation afterwards, pass or fail.
// A panic in fn is reported as the unit's error.
func (r *Runner) RunUnit(ctx context.Context, name string, fn UnitFunc) UnitResult {
	res := UnitResult{ID: uuid.NewString(), Name: name}
	logger := r.logger.With(zap.String("unit", name), zap.String("unit_id", res.ID))
	start := time.Now()

	h, err := r.manager.Current()
	if err != nil {
		res.Err = fmt.Errorf("unit %q: %w", name, err)
		res.Duration = time.Since(start)
		return res
	}

	logger.Debug("Unit started.")
	res.Err = runGuarded(ctx, fn, Env{UnitID: res.ID, Handle: h, Logger: logger})
	res.Duration = time.Since(start)

	if res.Err != nil {
		logger.Warn("Unit failed.", zap.Error(res.Err), zap.Duration("duration", res.Duration))
		if r.opts.ScreenshotOnFailure {
			res.Screenshot = r.captureScreenshot(ctx, h, res, logger)
		}
	} else {
		logger.Info("Unit passed.", zap.Duration("duration", res.Duration))
	}

	res.Isolation = r.manager.ResetIsolation(ctx)
	return res
}

func runGuarded(ctx context.Context, fn UnitFunc, env Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unit panicked: %v", p)
		}
	}()
	return fn(ctx, env)
}

// captureScreenshot stores a PNG of the failing page and returns its path, or "" on failure.
func (r *Runner) captureScreenshot(ctx context.Context, h driver.Handle, res UnitResult, logger *zap.Logger) string {
	png, err := h.Screenshot(ctx)
	if err != nil {
		logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(r.opts.ScreenshotDir, 0o755); err != nil {
		logger.Warn("Failed to create screenshot directory.", zap.String("dir", r.opts.ScreenshotDir), zap.Error(err))
		return ""
	}
	path := filepath.Join(r.opts.ScreenshotDir, fmt.Sprintf("%s-%s.png", fileSafe(res.Name), res.ID))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		logger.Warn("Failed to write failure screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}
	logger.Info("Failure screenshot saved.", zap.String("path", path))
	return path
}

func fileSafe(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	if safe == "" {
		return "unit"
	}
	return safe
}

// Teardown releases the browser session.
func (r *Runner) Teardown(ctx context.Context) error {
	if err := r.manager.Release(ctx); err != nil {
		return fmt.Errorf("harness teardown: %w", err)
	}
	return nil
}

// ErrNotRun marks units that never started because the run was cancelled or a worker failed.
var ErrNotRun = errors.New("unit not run")
