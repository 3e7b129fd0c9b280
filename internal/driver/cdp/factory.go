// internal/driver/cdp/factory.go
package cdp

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

const (
	defaultStartupTimeout = 60 * time.Second
	defaultCloseTimeout   = 15 * time.Second
)

// execCandidates lists the binaries tried for each kind when no explicit path is configured.
// Chrome is left to chromedp's own discovery.
var execCandidates = map[driver.Kind][]string{
	driver.Chromium: {"chromium", "chromium-browser"},
	driver.Edge:     {"microsoft-edge", "microsoft-edge-stable", "msedge"},
}

// Factory launches Chromium-family browsers over the DevTools protocol.
type Factory struct {
	logger   *zap.Logger
	lookPath func(string) (string, error)
}

var _ driver.Factory = (*Factory)(nil)

// NewFactory creates a chromedp-backed driver factory.
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		logger:   logger.Named("cdp_factory"),
		lookPath: exec.LookPath,
	}
}

// Create launches a browser process and opens one tab on it.
// The browser's lifetime is detached from ctx; ctx only bounds the startup.
func (f *Factory) Create(ctx context.Context, opts driver.Options) (driver.Handle, error) {
	kind := opts.Browser
	if kind == "" {
		kind = driver.Chrome
	}
	if kind == driver.Firefox {
		return nil, fmt.Errorf("%w: %s (only Chromium-family browsers speak CDP)", driver.ErrUnsupportedBrowser, kind)
	}

	execPath, err := f.resolveExecPath(kind, opts.ExecPath)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Launching browser.",
		zap.String("browser", string(kind)),
		zap.Bool("headless", opts.Headless),
		zap.String("exec_path", execPath),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(detach(ctx), AllocatorOptions(opts, execPath)...)
	sugar := f.logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	startup := opts.Timeouts.PageLoad
	if startup <= 0 {
		startup = defaultStartupTimeout
	}

	// The first Run allocates the browser. It must use browserCtx itself: a derived
	// timeout context would tear the browser down when it expired.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank"))
	}()

	timer := time.NewTimer(startup)
	defer timer.Stop()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-timer.C:
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser did not start within %s", startup)
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser startup aborted: %w", ctx.Err())
	}

	h := newHandle(browserCtx, browserCancel, allocCancel, opts.Timeouts, f.logger)
	f.logger.Info("Browser launched successfully and is responsive.", zap.String("handle_id", h.ID()))
	return h, nil
}

// Destroy terminates a handle created by this factory.
func (f *Factory) Destroy(ctx context.Context, h driver.Handle) error {
	ch, ok := h.(*Handle)
	if !ok {
		return fmt.Errorf("cdp: cannot destroy foreign handle of type %T", h)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultCloseTimeout)
		defer cancel()
	}
	f.logger.Info("Shutting down browser.", zap.String("handle_id", ch.ID()))
	return ch.terminate(ctx)
}

func (f *Factory) resolveExecPath(kind driver.Kind, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	candidates, ok := execCandidates[kind]
	if !ok {
		return "", nil
	}
	for _, name := range candidates {
		if path, err := f.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no %s executable found (tried %s)", driver.ErrUnsupportedBrowser, kind, strings.Join(candidates, ", "))
}

// AllocatorOptions assembles the exec allocator flags for opts.
func AllocatorOptions(opts driver.Options, execPath string) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("hide-scrollbars", opts.Headless),
		chromedp.Flag("mute-audio", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("disable-extensions", true),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if opts.Window.Width > 0 && opts.Window.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Window.Width, opts.Window.Height))
	}

	// Containers on Linux usually lack the namespaces the sandbox needs.
	if runtime.GOOS == "linux" {
		allocOpts = append(allocOpts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	for _, arg := range opts.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			allocOpts = append(allocOpts, chromedp.Flag(name, parts[1]))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(name, true))
		}
	}
	return allocOpts
}
