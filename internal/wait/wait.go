// internal/wait/wait.go
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is used when a Poller is configured without an interval.
const DefaultInterval = 100 * time.Millisecond

// ErrTimeout is matched by every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("wait: condition not met before timeout")

// Condition reports whether the awaited state has been reached.
// A returned error means "not yet" and polling continues; the last one is kept for diagnostics.
type Condition func(ctx context.Context) (bool, error)

// TimeoutError is returned when a Condition never reported true within its budget.
type TimeoutError struct {
	Op       string
	Timeout  time.Duration
	Elapsed  time.Duration
	Attempts int
	LastErr  error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %s (budget %s, %d attempts)", e.Op, e.Elapsed.Round(time.Millisecond), e.Timeout, e.Attempts)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

// Unwrap exposes the last condition failure.
func (e *TimeoutError) Unwrap() error { return e.LastErr }

// Is lets callers test for any timeout with errors.Is(err, wait.ErrTimeout).
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Poller evaluates a Condition until it holds or Timeout elapses.
// The zero Multiplier (or 1) polls at a fixed Interval; larger values back off
// geometrically, capped at MaxInterval when it is set.
//
// A Poller is a value with no internal state and is safe for concurrent use.
type Poller struct {
	Timeout     time.Duration
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
}

// Until is the fixed-interval shorthand for Poller{Timeout: timeout, Interval: interval}.Until.
func Until(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	return Poller{Timeout: timeout, Interval: interval}.Until(ctx, "wait", cond)
}

// Until blocks until cond returns true, the Timeout passes, or ctx is done.
// The first evaluation happens immediately. The final sleep is clipped to the remaining
// budget, so the call never overruns Timeout by more than one interval.
func (p Poller) Until(ctx context.Context, op string, cond Condition) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(p.Timeout)

	// The condition sees the wait's deadline so a slow probe cannot outlive the budget.
	condCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var (
		lastErr  error
		attempts int
	)
	for {
		attempts++
		ok, err := cond(condCtx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return p.timeout(op, start, attempts, lastErr)
		}
		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}

		if !time.Now().Before(deadline) {
			return p.timeout(op, start, attempts, lastErr)
		}
		interval = p.next(interval)
	}
}

func (p Poller) timeout(op string, start time.Time, attempts int, lastErr error) error {
	return &TimeoutError{
		Op:       op,
		Timeout:  p.Timeout,
		Elapsed:  time.Since(start),
		Attempts: attempts,
		LastErr:  lastErr,
	}
}

// next applies the backoff multiplier.
func (p Poller) next(current time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return current
	}
	n := time.Duration(float64(current) * p.Multiplier)
	if p.MaxInterval > 0 && n > p.MaxInterval {
		n = p.MaxInterval
	}
	return n
}
