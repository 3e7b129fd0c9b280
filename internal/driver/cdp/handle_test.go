// internal/driver/cdp/handle_test.go
package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/internal/driver"
)

const fixturePage = `<!doctype html>
<html><body>
<h1 id="title">Fixture</h1>
<button id="go" onclick="document.getElementById('out').textContent='clicked'">Go</button>
<button id="off" disabled>Off</button>
<div id="hidden" style="display:none">hidden</div>
<input id="name" />
<p id="out"></p>
<script>localStorage.setItem('k', 'v'); sessionStorage.setItem('k', 'v'); document.cookie = 'c=1';</script>
</body></html>`

// requireBrowser skips integration tests on machines without a Chromium-family browser.
func requireBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser integration test")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome/Chromium installation found")
}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, fixturePage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandle_Integration(t *testing.T) {
	requireBrowser(t)
	srv := newFixtureServer(t)

	f := NewFactory(zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	h, err := f.Create(ctx, driver.Options{
		Browser:  driver.Chrome,
		Headless: true,
		Timeouts: driver.Timeouts{Implicit: 5 * time.Second, PageLoad: 30 * time.Second, Script: 5 * time.Second},
		Window:   driver.WindowSize{Width: 1024, Height: 768},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, f.Destroy(context.Background(), h))
		assert.False(t, h.Alive())
	})

	assert.True(t, h.Alive())
	assert.NotEmpty(t, h.ID())

	require.NoError(t, h.Navigate(ctx, srv.URL))
	u, err := h.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Contains(t, u, srv.URL)

	t.Run("element state", func(t *testing.T) {
		st, err := h.ElementState(ctx, "#go")
		require.NoError(t, err)
		assert.True(t, st.Clickable())

		st, err = h.ElementState(ctx, "#off")
		require.NoError(t, err)
		assert.True(t, st.Visible)
		assert.False(t, st.Enabled)

		st, err = h.ElementState(ctx, "#hidden")
		require.NoError(t, err)
		assert.True(t, st.Present)
		assert.False(t, st.Visible)

		st, err = h.ElementState(ctx, "#missing")
		require.NoError(t, err)
		assert.False(t, st.Present)

		_, err = h.ElementState(ctx, "##not a selector")
		assert.Error(t, err)
	})

	t.Run("interactions", func(t *testing.T) {
		require.NoError(t, h.Click(ctx, "#go"))
		var text string
		require.NoError(t, h.Evaluate(ctx, `document.getElementById('out').textContent`, &text))
		assert.Equal(t, "clicked", text)

		require.NoError(t, h.SendKeys(ctx, "#name", "ada"))
		require.NoError(t, h.Evaluate(ctx, `document.getElementById('name').value`, &text))
		assert.Equal(t, "ada", text)

		opCtx, opCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer opCancel()
		err := h.Click(opCtx, "#missing")
		var ie *driver.InteractionError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "#missing", ie.Locator)
	})

	t.Run("storage clearing", func(t *testing.T) {
		require.NoError(t, h.ClearCookies(ctx))
		require.NoError(t, h.ClearLocalStorage(ctx))
		require.NoError(t, h.ClearSessionStorage(ctx))

		var n int
		require.NoError(t, h.Evaluate(ctx, `localStorage.length + sessionStorage.length`, &n))
		assert.Zero(t, n)
		assert.True(t, h.Alive())
	})

	t.Run("screenshot", func(t *testing.T) {
		png, err := h.Screenshot(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	})

	t.Run("undefined result", func(t *testing.T) {
		var v any
		assert.ErrorIs(t, h.Evaluate(ctx, `undefined`, &v), errUndefinedResult)
		assert.NoError(t, h.Evaluate(ctx, `undefined`, nil))
	})
}
