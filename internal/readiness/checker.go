// internal/readiness/checker.go
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/wait"
)

// errSignalAbsent marks a poll where the probe's signal was not on the page.
var errSignalAbsent = errors.New("readiness signal absent")

// ProbeMisconfiguredError means the probe's signal does not exist on the page at all,
// e.g. the application framework never loaded. It does not match wait.ErrTimeout.
type ProbeMisconfiguredError struct {
	Probe   string
	URL     string
	Elapsed time.Duration
}

func (e *ProbeMisconfiguredError) Error() string {
	msg := fmt.Sprintf("readiness probe %q: signal not present on %s", e.Probe, e.URL)
	if e.Elapsed > 0 {
		msg += fmt.Sprintf(" (waited %s)", e.Elapsed.Round(time.Millisecond))
	}
	return msg
}

// Checker answers "has the application settled?" for one probe.
type Checker struct {
	probe    Probe
	interval time.Duration
	logger   *zap.Logger
}

// NewChecker creates a Checker polling probe every interval.
func NewChecker(probe Probe, interval time.Duration, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		probe:    probe,
		interval: interval,
		logger:   logger.Named("readiness").With(zap.String("probe", probe.Name())),
	}
}

// Probe returns the probe this checker evaluates.
func (c *Checker) Probe() Probe { return c.probe }

// IsStable evaluates the probe once. A missing signal is a *ProbeMisconfiguredError, not false.
func (c *Checker) IsStable(ctx context.Context, h driver.Handle) (bool, error) {
	present, stable, err := c.probe.Check(ctx, h)
	if err != nil {
		return false, fmt.Errorf("readiness probe %q: %w", c.probe.Name(), err)
	}
	if !present {
		return false, c.misconfigured(ctx, h, 0)
	}
	return stable, nil
}

// WaitForStable polls the probe until it reports stable or timeout elapses.
// Probe failures and a not-yet-present signal keep the wait going; if the signal never
// appeared during the whole window the result is a *ProbeMisconfiguredError, otherwise
// a *wait.TimeoutError carrying the last failure.
func (c *Checker) WaitForStable(ctx context.Context, h driver.Handle, timeout time.Duration) error {
	var sawSignal bool
	poller := wait.Poller{Timeout: timeout, Interval: c.interval}
	op := fmt.Sprintf("wait for %s stability", c.probe.Name())

	err := poller.Until(ctx, op, func(ctx context.Context) (bool, error) {
		present, stable, err := c.probe.Check(ctx, h)
		if err != nil {
			return false, err
		}
		if !present {
			return false, errSignalAbsent
		}
		sawSignal = true
		return stable, nil
	})
	if err == nil {
		return nil
	}

	var te *wait.TimeoutError
	if errors.As(err, &te) {
		if !sawSignal && errors.Is(te.LastErr, errSignalAbsent) {
			c.logger.Warn("Readiness signal never appeared.", zap.Duration("elapsed", te.Elapsed))
			return c.misconfigured(ctx, h, te.Elapsed)
		}
		c.logger.Warn("Application did not settle in time.",
			zap.Duration("elapsed", te.Elapsed),
			zap.Int("attempts", te.Attempts),
			zap.NamedError("last_error", te.LastErr),
		)
	}
	return err
}

func (c *Checker) misconfigured(ctx context.Context, h driver.Handle, elapsed time.Duration) error {
	url, err := h.CurrentURL(ctx)
	if err != nil {
		url = "<unknown url>"
	}
	return &ProbeMisconfiguredError{Probe: c.probe.Name(), URL: url, Elapsed: elapsed}
}
