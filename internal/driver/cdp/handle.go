// internal/driver/cdp/handle.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

// errUndefinedResult is returned when a script that should produce a value does not.
var errUndefinedResult = errors.New("script evaluated to undefined")

// Handle is a driver.Handle backed by one chromedp browser tab.
type Handle struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeouts    driver.Timeouts
	logger      *zap.Logger

	alive     atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ driver.Handle = (*Handle)(nil)

func newHandle(ctx context.Context, cancel, allocCancel context.CancelFunc, timeouts driver.Timeouts, logger *zap.Logger) *Handle {
	var id string
	if c := chromedp.FromContext(ctx); c != nil && c.Target != nil {
		id = string(c.Target.TargetID)
	}
	h := &Handle{
		id:          id,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeouts:    timeouts,
		logger:      logger.Named("handle").With(zap.String("handle_id", id)),
	}
	h.alive.Store(true)
	return h
}

// ID returns the DevTools target id of the tab.
func (h *Handle) ID() string { return h.id }

// Alive is false once the handle was terminated or the browser went away.
func (h *Handle) Alive() bool {
	return h.alive.Load() && h.ctx.Err() == nil
}

// run executes actions in the tab, bounded by ctx and, when positive, by timeout.
func (h *Handle) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(h.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	h.logger.Debug("Navigating.", zap.String("url", url))
	if err := h.run(ctx, h.timeouts.PageLoad, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL reports the URL the browser is showing.
func (h *Handle) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := h.run(ctx, h.timeouts.Script, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("read current url: %w", err)
	}
	return u, nil
}

// Evaluate runs script and decodes its JSON value into out. A nil out discards the result.
func (h *Handle) Evaluate(ctx context.Context, script string, out any) error {
	var raw []byte
	if err := h.run(ctx, h.timeouts.Script, chromedp.Evaluate(script, &raw)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		return errUndefinedResult
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}

// ElementState snapshots the first element matching the CSS locator.
func (h *Handle) ElementState(ctx context.Context, locator string) (driver.ElementState, error) {
	script, err := buildElementStateScript(locator)
	if err != nil {
		return driver.ElementState{}, err
	}
	var res elementStateResult
	if err := h.Evaluate(ctx, script, &res); err != nil {
		return driver.ElementState{}, fmt.Errorf("element state %q: %w", locator, err)
	}
	if res.Error != "" {
		return driver.ElementState{}, fmt.Errorf("element state %q: %s", locator, res.Error)
	}
	return driver.ElementState{Present: res.Present, Visible: res.Visible, Enabled: res.Enabled}, nil
}

// Click waits up to the implicit timeout for locator to be visible, then clicks it.
func (h *Handle) Click(ctx context.Context, locator string) error {
	if err := h.run(ctx, h.timeouts.Implicit, chromedp.Click(locator, chromedp.ByQuery)); err != nil {
		return &driver.InteractionError{Op: "click", Locator: locator, Err: err}
	}
	return nil
}

// SendKeys focuses locator and types text into it.
func (h *Handle) SendKeys(ctx context.Context, locator, text string) error {
	if err := h.run(ctx, h.timeouts.Implicit, chromedp.SendKeys(locator, text, chromedp.ByQuery)); err != nil {
		return &driver.InteractionError{Op: "send keys", Locator: locator, Err: err}
	}
	return nil
}

// ClearCookies removes every cookie in the browser.
func (h *Handle) ClearCookies(ctx context.Context) error {
	if err := h.run(ctx, h.timeouts.Script, network.ClearBrowserCookies()); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

// ClearLocalStorage clears localStorage for the current origin.
// It fails when no document with an origin is loaded (about:blank, data: URLs).
func (h *Handle) ClearLocalStorage(ctx context.Context) error {
	var ok bool
	if err := h.Evaluate(ctx, clearLocalStorageScript, &ok); err != nil {
		return fmt.Errorf("clear local storage: %w", err)
	}
	return nil
}

// ClearSessionStorage clears sessionStorage for the current origin.
func (h *Handle) ClearSessionStorage(ctx context.Context) error {
	var ok bool
	if err := h.Evaluate(ctx, clearSessionStorageScript, &ok); err != nil {
		return fmt.Errorf("clear session storage: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (h *Handle) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := h.run(ctx, h.timeouts.Script, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// terminate closes the browser gracefully, bounded by ctx. It runs at most once.
func (h *Handle) terminate(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.alive.Store(false)

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(h.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				h.closeErr = fmt.Errorf("close browser: %w", err)
			}
		case <-ctx.Done():
			h.closeErr = fmt.Errorf("close browser: %w", ctx.Err())
		}

		// Kills the process if the graceful close did not finish.
		h.cancel()
		h.allocCancel()
	})
	return h.closeErr
}
