// internal/element/waiter_test.go
package element

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/mocks"
	"github.com/xkilldash9x/pagewright/internal/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newWaiter(t *testing.T, timeout time.Duration) *Waiter {
	return NewWaiter(wait.Poller{Timeout: timeout, Interval: 5 * time.Millisecond}, zaptest.NewLogger(t))
}

func TestWaiter_Visible(t *testing.T) {
	h := mocks.NewMockHandle("h")
	h.On("ElementState", mock.Anything, "#save").Return(driver.ElementState{Present: true}, nil).Twice()
	h.On("ElementState", mock.Anything, "#save").Return(driver.ElementState{Present: true, Visible: true}, nil)

	require.NoError(t, newWaiter(t, time.Second).Visible(context.Background(), h, "#save"))
	h.AssertNumberOfCalls(t, "ElementState", 3)
}

func TestWaiter_Clickable(t *testing.T) {
	t.Run("disabled element times out", func(t *testing.T) {
		h := mocks.NewMockHandle("h")
		h.On("ElementState", mock.Anything, "#submit").Return(driver.ElementState{Present: true, Visible: true}, nil)

		err := newWaiter(t, 40*time.Millisecond).Clickable(context.Background(), h, "#submit")
		var te *wait.TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Contains(t, te.Op, `"#submit"`)
		assert.Contains(t, te.Op, "clickable")
		assert.Greater(t, te.Attempts, 1)
	})

	t.Run("enabled element", func(t *testing.T) {
		h := mocks.NewMockHandle("h")
		h.On("ElementState", mock.Anything, "#submit").Return(driver.ElementState{Present: true, Visible: true, Enabled: true}, nil)
		assert.NoError(t, newWaiter(t, time.Second).Clickable(context.Background(), h, "#submit"))
	})
}

func TestWaiter_PresentAndHidden(t *testing.T) {
	h := mocks.NewMockHandle("h")
	h.On("ElementState", mock.Anything, "#spinner").Return(driver.ElementState{Present: true, Visible: true}, nil).Once()
	h.On("ElementState", mock.Anything, "#spinner").Return(driver.ElementState{}, nil)

	w := newWaiter(t, time.Second)
	assert.NoError(t, w.Hidden(context.Background(), h, "#spinner"))

	err := w.WithTimeout(30*time.Millisecond).Present(context.Background(), h, "#spinner")
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Equal(t, time.Second, w.poller.Timeout)
}

func TestWaiter_DriverErrorsAreRetained(t *testing.T) {
	h := mocks.NewMockHandle("h")
	bad := errors.New("invalid selector")
	h.On("ElementState", mock.Anything, "##").Return(driver.ElementState{}, bad)

	err := newWaiter(t, 30*time.Millisecond).Visible(context.Background(), h, "##")
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.ErrorIs(t, err, bad)
}
