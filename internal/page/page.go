// internal/page/page.go
package page

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/element"
	"github.com/xkilldash9x/pagewright/internal/readiness"
	"github.com/xkilldash9x/pagewright/internal/wait"
)

const (
	defaultPageLoadTimeout = 30 * time.Second
	defaultExplicitTimeout = 10 * time.Second
)

// Hooks are the extension points a page model may override.
type Hooks interface {
	// OnNavigated runs after navigation and the generic page-load wait have completed.
	OnNavigated(ctx context.Context, url string) error
	// BeforeInteract runs before every raw interaction. An error aborts the interaction.
	BeforeInteract(ctx context.Context, locator string) error
	// AfterInteract runs after a raw interaction that succeeded.
	AfterInteract(ctx context.Context, locator string) error
}

// DefaultHooks implements Hooks with no-ops. Embed it and override what you need.
type DefaultHooks struct{}

func (DefaultHooks) OnNavigated(context.Context, string) error    { return nil }
func (DefaultHooks) BeforeInteract(context.Context, string) error { return nil }
func (DefaultHooks) AfterInteract(context.Context, string) error  { return nil }

// Model is a page object. VerifyLoaded is a single check with no waiting; it has no default.
type Model interface {
	Hooks
	VerifyLoaded(ctx context.Context) (bool, error)
}

// NotLoadedError is returned when a page's VerifyLoaded check fails after navigation.
type NotLoadedError struct {
	Page    string
	URL     string
	Elapsed time.Duration
}

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("page %q not loaded at %s after %s", e.Page, e.URL, e.Elapsed.Round(time.Millisecond))
}

// Options configure the waits a Base performs.
type Options struct {
	Timeouts     driver.Timeouts
	PollInterval time.Duration
	// Probe is the application readiness probe used by WaitForStable. Nil means "none".
	Probe  readiness.Probe
	Logger *zap.Logger
}

// Base carries the lifecycle template shared by page models. Concrete models embed *Base
// and pass themselves in as the Model, so the template calls back into their hooks.
//
// Base borrows the handle; it has no way to end the browser session. Construction does no I/O.
type Base struct {
	name   string
	handle driver.Handle
	model  Model

	timeouts driver.Timeouts
	elements *element.Waiter
	loaded   *readiness.Checker
	app      *readiness.Checker
	logger   *zap.Logger
}

// NewBase creates the lifecycle template for model.
func NewBase(name string, h driver.Handle, model Model, opts Options) *Base {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("page").With(zap.String("page", name))

	timeouts := opts.Timeouts
	if timeouts.PageLoad <= 0 {
		timeouts.PageLoad = defaultPageLoadTimeout
	}
	if timeouts.Explicit <= 0 {
		timeouts.Explicit = defaultExplicitTimeout
	}
	probe := opts.Probe
	if probe == nil {
		probe, _ = readiness.Lookup(readiness.ProbeNone, "")
	}

	return &Base{
		name:     name,
		handle:   h,
		model:    model,
		timeouts: timeouts,
		elements: element.NewWaiter(wait.Poller{Timeout: timeouts.Explicit, Interval: opts.PollInterval}, logger),
		loaded:   readiness.NewChecker(readiness.DocumentReady(), opts.PollInterval, logger),
		app:      readiness.NewChecker(probe, opts.PollInterval, logger),
		logger:   logger,
	}
}

// Name identifies the page in logs and errors.
func (b *Base) Name() string { return b.name }

// Handle returns the borrowed driver handle.
func (b *Base) Handle() driver.Handle { return b.handle }

// Navigate loads url, waits for the document to finish loading and then runs OnNavigated.
func (b *Base) Navigate(ctx context.Context, url string) error {
	b.logger.Debug("Navigating.", zap.String("url", url))
	if err := b.handle.Navigate(ctx, url); err != nil {
		return fmt.Errorf("page %q: %w", b.name, err)
	}
	if err := b.loaded.WaitForStable(ctx, b.handle, b.timeouts.PageLoad); err != nil {
		return fmt.Errorf("page %q: wait for load of %s: %w", b.name, url, err)
	}
	if err := b.model.OnNavigated(ctx, url); err != nil {
		return fmt.Errorf("page %q: after navigation to %s: %w", b.name, url, err)
	}
	return nil
}

// Load navigates and then checks VerifyLoaded once.
func (b *Base) Load(ctx context.Context, url string) error {
	start := time.Now()
	if err := b.Navigate(ctx, url); err != nil {
		return err
	}
	ok, err := b.model.VerifyLoaded(ctx)
	if err != nil {
		return fmt.Errorf("page %q: verify loaded: %w", b.name, err)
	}
	if !ok {
		return &NotLoadedError{Page: b.name, URL: url, Elapsed: time.Since(start)}
	}
	b.logger.Debug("Page loaded.", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Click runs BeforeInteract, the raw click and AfterInteract, in that order.
// A failed click is returned unchanged and AfterInteract is skipped.
func (b *Base) Click(ctx context.Context, locator string) error {
	return b.interact(ctx, locator, func() error { return b.handle.Click(ctx, locator) })
}

// Type sends text to locator, wrapped in the interaction hooks like Click.
func (b *Base) Type(ctx context.Context, locator, text string) error {
	return b.interact(ctx, locator, func() error { return b.handle.SendKeys(ctx, locator, text) })
}

func (b *Base) interact(ctx context.Context, locator string, raw func() error) error {
	if err := b.model.BeforeInteract(ctx, locator); err != nil {
		return fmt.Errorf("page %q: before interacting with %q: %w", b.name, locator, err)
	}
	if err := raw(); err != nil {
		return err
	}
	if err := b.model.AfterInteract(ctx, locator); err != nil {
		return fmt.Errorf("page %q: after interacting with %q: %w", b.name, locator, err)
	}
	return nil
}

// WaitForStable waits for the application readiness probe within the explicit timeout.
func (b *Base) WaitForStable(ctx context.Context) error {
	return b.app.WaitForStable(ctx, b.handle, b.timeouts.Explicit)
}

// WaitVisible waits for locator to become visible within the explicit timeout.
func (b *Base) WaitVisible(ctx context.Context, locator string) error {
	return b.elements.Visible(ctx, b.handle, locator)
}

// WaitClickable waits for locator to become visible and enabled within the explicit timeout.
func (b *Base) WaitClickable(ctx context.Context, locator string) error {
	return b.elements.Clickable(ctx, b.handle, locator)
}

// WaitLoaded retries model.VerifyLoaded on poller until it reports true.
func WaitLoaded(ctx context.Context, model Model, poller wait.Poller) error {
	name := "page"
	if n, ok := model.(interface{ Name() string }); ok {
		name = n.Name()
	}
	return poller.Until(ctx, fmt.Sprintf("wait for page %q to load", name), model.VerifyLoaded)
}
