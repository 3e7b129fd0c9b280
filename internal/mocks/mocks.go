// internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

// -- Driver Handle Mock --

// MockHandle mocks the driver.Handle interface.
// Alive is backed by a flag rather than an expectation so that concurrent readers
// and the factory mock can flip it without extra setup.
type MockHandle struct {
	mock.Mock
	HandleID string
	dead     atomic.Bool
}

// NewMockHandle returns a live handle with the given identifier.
func NewMockHandle(id string) *MockHandle {
	return &MockHandle{HandleID: id}
}

func (m *MockHandle) ID() string  { return m.HandleID }
func (m *MockHandle) Alive() bool { return !m.dead.Load() }

// Kill marks the handle as no longer usable.
func (m *MockHandle) Kill() { m.dead.Store(true) }

func (m *MockHandle) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockHandle) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockHandle) Evaluate(ctx context.Context, script string, out any) error {
	return m.Called(ctx, script, out).Error(0)
}

func (m *MockHandle) ElementState(ctx context.Context, locator string) (driver.ElementState, error) {
	args := m.Called(ctx, locator)
	return args.Get(0).(driver.ElementState), args.Error(1)
}

func (m *MockHandle) Click(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockHandle) SendKeys(ctx context.Context, locator, text string) error {
	return m.Called(ctx, locator, text).Error(0)
}

func (m *MockHandle) ClearCookies(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHandle) ClearLocalStorage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHandle) ClearSessionStorage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHandle) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EvaluateJSON is a Run function for Evaluate expectations: it decodes raw into the
// caller's out argument the way a real handle decodes a script result.
func EvaluateJSON(raw string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		if out := args.Get(2); out != nil {
			if err := json.UnmarshalFromString(raw, out); err != nil {
				panic(err)
			}
		}
	}
}

// -- Driver Factory Mock --

// MockFactory mocks the driver.Factory interface.
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) Create(ctx context.Context, opts driver.Options) (driver.Handle, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(driver.Handle), args.Error(1)
}

// Destroy records the call and, on success, marks a *MockHandle dead the way a real
// factory would.
func (m *MockFactory) Destroy(ctx context.Context, h driver.Handle) error {
	err := m.Called(ctx, h).Error(0)
	if mh, ok := h.(*MockHandle); ok && err == nil {
		mh.Kill()
	}
	return err
}

// -- Readiness Probe Mock --

// MockProbe mocks the readiness.Probe interface.
type MockProbe struct {
	mock.Mock
	ProbeName string
}

func (m *MockProbe) Name() string { return m.ProbeName }

func (m *MockProbe) Check(ctx context.Context, ev driver.Evaluator) (bool, bool, error) {
	args := m.Called(ctx, ev)
	return args.Bool(0), args.Bool(1), args.Error(2)
}
