// internal/wait/wait_test.go
package wait

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func never(context.Context) (bool, error) { return false, nil }

func TestUntil_RespectsTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("uses the full two second budget")
	}

	start := time.Now()
	err := Until(context.Background(), never, 2*time.Second, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	// One poll interval of overrun plus scheduler slack.
	assert.Less(t, elapsed, 2100*time.Millisecond+50*time.Millisecond)
}

func TestUntil_ShortTimeoutBounds(t *testing.T) {
	const (
		timeout  = 300 * time.Millisecond
		interval = 40 * time.Millisecond
	)
	start := time.Now()
	err := Until(context.Background(), never, timeout, interval)
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+interval+50*time.Millisecond)
	assert.Equal(t, timeout, te.Timeout)
	assert.GreaterOrEqual(t, te.Elapsed, timeout)
	assert.GreaterOrEqual(t, te.Attempts, 5)
}

func TestUntil_ShortCircuitsOnThirdPoll(t *testing.T) {
	const interval = 50 * time.Millisecond
	var calls atomic.Int32
	cond := func(context.Context) (bool, error) {
		return calls.Add(1) == 3, nil
	}

	start := time.Now()
	err := Until(context.Background(), cond, 5*time.Second, interval)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	// Evaluated at 0, 1x and 2x the interval.
	assert.GreaterOrEqual(t, elapsed, 2*interval)
	assert.Less(t, elapsed, 5*interval)
}

func TestUntil_FirstEvaluationIsImmediate(t *testing.T) {
	start := time.Now()
	err := Until(context.Background(), func(context.Context) (bool, error) { return true, nil }, time.Second, time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestUntil_ConditionErrorsKeepPolling(t *testing.T) {
	transient := errors.New("document not ready")
	var calls atomic.Int32
	cond := func(context.Context) (bool, error) {
		if calls.Add(1) < 4 {
			return false, transient
		}
		return true, nil
	}

	err := Until(context.Background(), cond, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestUntil_TimeoutCarriesLastError(t *testing.T) {
	first := errors.New("first failure")
	last := errors.New("last failure")
	var calls atomic.Int32
	cond := func(context.Context) (bool, error) {
		if calls.Add(1) == 1 {
			return false, first
		}
		return false, last
	}

	err := Poller{Timeout: 100 * time.Millisecond, Interval: 20 * time.Millisecond}.Until(context.Background(), "wait for banner", cond)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, first)
	assert.Equal(t, "wait for banner", te.Op)
	assert.Contains(t, err.Error(), "wait for banner")
	assert.Contains(t, err.Error(), "last failure")
}

func TestUntil_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := Until(ctx, never, 5*time.Second, 10*time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUntil_ConditionSeesDeadline(t *testing.T) {
	var sawDeadline bool
	cond := func(ctx context.Context) (bool, error) {
		_, sawDeadline = ctx.Deadline()
		return true, nil
	}
	require.NoError(t, Until(context.Background(), cond, time.Second, 10*time.Millisecond))
	assert.True(t, sawDeadline)
}

func TestUntil_ConcurrentCallers(t *testing.T) {
	p := Poller{Timeout: time.Second, Interval: 5 * time.Millisecond}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n atomic.Int32
			err := p.Until(context.Background(), "concurrent", func(context.Context) (bool, error) {
				return n.Add(1) >= 3, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestPoller_Backoff(t *testing.T) {
	p := Poller{Interval: 10 * time.Millisecond, Multiplier: 2, MaxInterval: 35 * time.Millisecond}
	assert.Equal(t, 20*time.Millisecond, p.next(10*time.Millisecond))
	assert.Equal(t, 35*time.Millisecond, p.next(20*time.Millisecond))
	assert.Equal(t, 35*time.Millisecond, p.next(35*time.Millisecond))

	fixed := Poller{Interval: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, fixed.next(10*time.Millisecond))
}

func TestPoller_ZeroIntervalUsesDefault(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()
	err := Poller{Timeout: time.Second}.Until(context.Background(), "default interval", func(context.Context) (bool, error) {
		return calls.Add(1) == 2, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), DefaultInterval)
}
