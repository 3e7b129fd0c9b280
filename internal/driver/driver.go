// internal/driver/driver.go
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind enumerates the browsers a Factory may be asked to launch.
type Kind string

const (
	Chrome   Kind = "chrome"
	Chromium Kind = "chromium"
	Edge     Kind = "edge"
	Firefox  Kind = "firefox"
)

// ParseKind normalizes a configured browser name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Chrome, Chromium, Edge, Firefox:
		return k, nil
	case "":
		return Chrome, nil
	default:
		return "", fmt.Errorf("unknown browser kind %q", s)
	}
}

// ErrUnsupportedBrowser is returned by a Factory that cannot drive the requested Kind.
var ErrUnsupportedBrowser = errors.New("driver: unsupported browser kind")

// Timeouts are the per-operation budgets a handle applies to driver commands.
type Timeouts struct {
	// Implicit bounds element resolution inside a raw interaction.
	Implicit time.Duration `json:"implicit"`
	// Explicit is the default budget for explicit waits (readiness, element waits).
	Explicit time.Duration `json:"explicit"`
	// PageLoad bounds navigation and browser startup.
	PageLoad time.Duration `json:"page_load"`
	// Script bounds a single script evaluation or storage command.
	Script time.Duration `json:"script"`
}

// WindowSize is the browser window in CSS pixels.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Options are the creation parameters handed to a Factory.
type Options struct {
	Browser  Kind       `json:"browser"`
	Headless bool       `json:"headless"`
	Timeouts Timeouts   `json:"timeouts"`
	Window   WindowSize `json:"window"`
	Args     []string   `json:"args,omitempty"`
	ExecPath string     `json:"exec_path,omitempty"`
}

// ElementState is a point-in-time snapshot of one located element.
type ElementState struct {
	Present bool `json:"present"`
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// Clickable reports whether the element can receive a click.
func (s ElementState) Clickable() bool { return s.Present && s.Visible && s.Enabled }

// Evaluator runs a script in the current document and decodes its JSON result into out.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out any) error
}

// Handle is one live browser-driver session.
//
// Handles are owned by whoever created them through a Factory. Borrowers (page models,
// test units) use the operations below but have no way to terminate the session.
// A single handle accepts one command stream; it is not meant for parallel callers.
type Handle interface {
	Evaluator

	// ID is the driver-internal session identifier.
	ID() string
	// Alive reports whether the underlying session is still usable.
	Alive() bool

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)

	// ElementState resolves locator and reports its state. A locator that matches
	// nothing yields a zero ElementState, not an error.
	ElementState(ctx context.Context, locator string) (ElementState, error)
	Click(ctx context.Context, locator string) error
	SendKeys(ctx context.Context, locator, text string) error

	ClearCookies(ctx context.Context) error
	ClearLocalStorage(ctx context.Context) error
	ClearSessionStorage(ctx context.Context) error

	Screenshot(ctx context.Context) ([]byte, error)
}

// Factory creates and destroys handles.
type Factory interface {
	Create(ctx context.Context, opts Options) (Handle, error)
	Destroy(ctx context.Context, h Handle) error
}

// InteractionError is a failed raw driver action (element missing, not interactable).
type InteractionError struct {
	Op      string
	Locator string
	Err     error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Locator, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }
