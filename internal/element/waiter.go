// internal/element/waiter.go
package element

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/wait"
)

// Waiter blocks until a located element reaches a given state.
type Waiter struct {
	poller wait.Poller
	logger *zap.Logger
}

// NewWaiter creates a Waiter using poller for every wait.
func NewWaiter(poller wait.Poller, logger *zap.Logger) *Waiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{poller: poller, logger: logger.Named("element")}
}

// WithTimeout returns a copy of the waiter with a different budget.
func (w *Waiter) WithTimeout(d time.Duration) *Waiter {
	cp := *w
	cp.poller.Timeout = d
	return &cp
}

// Present waits until locator matches an element in the document.
func (w *Waiter) Present(ctx context.Context, h driver.Handle, locator string) error {
	return w.until(ctx, h, locator, "present", func(s driver.ElementState) bool { return s.Present })
}

// Visible waits until locator matches a rendered, non-hidden element.
func (w *Waiter) Visible(ctx context.Context, h driver.Handle, locator string) error {
	return w.until(ctx, h, locator, "visible", func(s driver.ElementState) bool { return s.Present && s.Visible })
}

// Clickable waits until locator is visible and enabled.
func (w *Waiter) Clickable(ctx context.Context, h driver.Handle, locator string) error {
	return w.until(ctx, h, locator, "clickable", driver.ElementState.Clickable)
}

// Hidden waits until locator is either gone or not visible.
func (w *Waiter) Hidden(ctx context.Context, h driver.Handle, locator string) error {
	return w.until(ctx, h, locator, "hidden", func(s driver.ElementState) bool { return !s.Present || !s.Visible })
}

func (w *Waiter) until(ctx context.Context, h driver.Handle, locator, state string, want func(driver.ElementState) bool) error {
	op := fmt.Sprintf("wait for %q to be %s", locator, state)
	err := w.poller.Until(ctx, op, func(ctx context.Context) (bool, error) {
		st, err := h.ElementState(ctx, locator)
		if err != nil {
			return false, err
		}
		return want(st), nil
	})
	if err != nil {
		w.logger.Debug("Element wait failed.",
			zap.String("locator", locator),
			zap.String("state", state),
			zap.Error(err),
		)
	}
	return err
}
