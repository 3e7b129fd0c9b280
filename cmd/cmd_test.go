// cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/internal/driver"
	"github.com/xkilldash9x/pagewright/internal/mocks"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

const documentComplete = `{"present":true,"stable":true}`

// resetForTest isolates global state between command tests.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(func() {
		observability.ResetForTest()
		newFactory = defaultFactory
	})
}

var defaultFactory = newFactory

// useMockFactory routes every browser launch to a mock handle.
func useMockFactory(t *testing.T, landmarkVisible bool) (*mocks.MockFactory, *mocks.MockHandle) {
	t.Helper()
	h := mocks.NewMockHandle("tab-1")
	h.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	h.On("CurrentURL", mock.Anything).Return("https://app.test/", nil)
	h.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Run(mocks.EvaluateJSON(documentComplete)).Return(nil)
	h.On("ElementState", mock.Anything, mock.Anything).
		Return(driver.ElementState{Present: true, Visible: landmarkVisible, Enabled: true}, nil)
	h.On("ClearCookies", mock.Anything).Return(nil)
	h.On("ClearLocalStorage", mock.Anything).Return(nil)
	h.On("ClearSessionStorage", mock.Anything).Return(nil)
	h.On("Screenshot", mock.Anything).Return([]byte("png"), nil)

	f := new(mocks.MockFactory)
	f.On("Create", mock.Anything, mock.Anything).Return(h, nil)
	f.On("Destroy", mock.Anything, mock.Anything).Return(nil)
	newFactory = func(*zap.Logger) driver.Factory { return f }
	return f, h
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "pagewright version "+Version)
}

func TestRootCmd_Help(t *testing.T) {
	resetForTest(t)
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "smoke")
	assert.Contains(t, out, "probe")
}

func TestSmokeCmd(t *testing.T) {
	resetForTest(t)
	f, h := useMockFactory(t, true)

	out, err := execute(t, "smoke", "--base-url", "https://app.test", "--landmark", "#app", "/", "/login")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "https://app.test/login")
	assert.NotContains(t, out, "FAIL")

	f.AssertNumberOfCalls(t, "Create", 1)
	f.AssertNumberOfCalls(t, "Destroy", 1)
	h.AssertCalled(t, "ElementState", mock.Anything, "#app")
	h.AssertNumberOfCalls(t, "ClearCookies", 2)
}

func TestSmokeCmd_FailureTakesScreenshot(t *testing.T) {
	resetForTest(t)
	useMockFactory(t, false)
	shots := filepath.Join(t.TempDir(), "shots")

	out, err := execute(t, "smoke", "--screenshots", shots, "https://app.test/broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 targets failed")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "not loaded")

	entries, readErr := os.ReadDir(shots)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
}

func TestSmokeCmd_WorkersFromEnvironment(t *testing.T) {
	resetForTest(t)
	f, _ := useMockFactory(t, true)
	t.Setenv("PAGEWRIGHT_RUN_WORKERS", "2")

	_, err := execute(t, "smoke", "https://app.test/a", "https://app.test/b", "https://app.test/c")
	require.NoError(t, err)
	// One browser per worker.
	f.AssertNumberOfCalls(t, "Create", 2)
}

func TestSmokeCmd_NeedsATarget(t *testing.T) {
	resetForTest(t)
	useMockFactory(t, true)
	_, err := execute(t, "smoke")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.base_url")
}

func TestSmokeCmd_InvalidConfig(t *testing.T) {
	resetForTest(t)
	useMockFactory(t, true)
	_, err := execute(t, "smoke", "--probe", "vue", "https://app.test/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readiness")
}

func TestProbeCmd(t *testing.T) {
	resetForTest(t)
	f, _ := useMockFactory(t, true)

	out, err := execute(t, "probe", "--selector", "#go", "https://app.test/")
	require.NoError(t, err)
	assert.Contains(t, out, "probe:   document")
	assert.Contains(t, out, "signal:  present (stable now: true)")
	assert.Contains(t, out, "settled: yes")
	assert.Contains(t, out, "element: #go present=true visible=true enabled=true")
	f.AssertNumberOfCalls(t, "Destroy", 1)
}

func TestResolveTargets(t *testing.T) {
	got, err := resolveTargets("https://app.test/base/", []string{"login", "/abs", "http://other.test/x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.test/base/login", "https://app.test/abs", "http://other.test/x"}, got)

	got, err = resolveTargets("https://app.test", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.test"}, got)

	_, err = resolveTargets("", []string{"relative"})
	assert.Error(t, err)
	_, err = resolveTargets("not a url", []string{"x"})
	assert.Error(t, err)
}
