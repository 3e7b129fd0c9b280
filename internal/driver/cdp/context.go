// internal/driver/cdp/context.go
package cdp

import (
	"context"
	"errors"
)

// combineContext derives an operation context from the browser context so chromedp
// finds its target information, while also ending when op ends. The op deadline is
// carried over so timeouts surface as context.DeadlineExceeded rather than Canceled.
func combineContext(browser, op context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(browser)
	cancelDeadline := context.CancelFunc(func() {})
	deadline, hasDeadline := op.Deadline()
	if hasDeadline {
		ctx, cancelDeadline = context.WithDeadline(ctx, deadline)
	}
	stop := context.AfterFunc(op, func() {
		// An expired op deadline is reported by our own deadline timer.
		if hasDeadline && errors.Is(op.Err(), context.DeadlineExceeded) {
			return
		}
		cancel()
	})

	return ctx, func() {
		stop()
		cancelDeadline()
		cancel()
	}
}

// detach keeps ctx's values but drops its cancellation, so a browser launched while
// serving a short-lived request is not killed when that request's context ends.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
