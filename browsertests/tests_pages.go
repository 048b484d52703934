package browsertests

import (
	"net/http"
	"strings"
	"time"

	"github.com/launchdarkly/browser-contract-tests/harness"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Navigations to the self-signed TLS server are flaky on Windows runners.
var tlsNavigationFixedOnWindows = time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)

func DoBrowserTests(t *harness.T) {
	t.Run("browser is running", func(t *harness.T) {
		require.NotNil(t, t.Browser())
		assert.Nil(t, t.Page(), "shared browser tests should not get a page")
	})

	t.Run("version", func(t *harness.T) {
		version, err := t.Browser().Version(t.Context())
		require.NoError(t, err)
		assert.NotEqual(t, "", version)
		t.Debug("browser version: %s", version)
	})

	t.Run("contexts can be created directly", func(t *harness.T) {
		bc, err := t.Browser().NewIncognitoContext(t.Context())
		require.NoError(t, err)
		t.Defer(func() { _ = bc.Close() })

		page, err := bc.NewPage(t.Context())
		require.NoError(t, err)
		require.NoError(t, page.Navigate(t.Context(), t.Server().EmptyPageURL()))
	})
}

func evalString(t *harness.T, js string) string {
	value, err := t.Page().Eval(t.Context(), js)
	require.NoError(t, err)
	return value.StringValue()
}

func DoPageTests(t *harness.T, r *harness.Registrar) {
	t.Run("navigate to empty page", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		assert.Equal(t, t.Server().EmptyPageURL(), evalString(t, "() => location.href"))
	})

	t.Run("navigation reaches the fixture server", func(t *harness.T) {
		handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithResponse(200,
			http.Header{"Content-Type": {"text/html"}}, []byte("<title>recorded</title>")))
		t.Server().SetRoute("/recorded.html", handler)

		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().Prefix()+"/recorded.html"))
		assert.Equal(t, "recorded", evalString(t, "() => document.title"))

		require.Len(t, requestsCh, 1)
		request := <-requestsCh
		assert.Equal(t, "GET", request.Request.Method)
		assert.NotEqual(t, "", request.Request.Header.Get("User-Agent"))
	})

	t.Run("cross-origin prefix is a different origin", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		first := evalString(t, "() => location.origin")
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().CrossOriginPrefix()+"/empty.html"))
		second := evalString(t, "() => location.origin")
		assert.NotEqual(t, first, second)
	})

	r.ItFailsWindowsUntilDate(tlsNavigationFixedOnWindows, "navigate over TLS", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.HTTPSServer().EmptyPageURL()))
		assert.Equal(t, "https:", evalString(t, "() => location.protocol"))
	}).Register(t)

	t.Run("evaluate returns JSON values", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		value, err := t.Page().Eval(t.Context(), "() => ({answer: 42, list: [1, 'two']})")
		require.NoError(t, err)
		assert.Equal(t, ldvalue.Parse([]byte(`{"answer":42,"list":[1,"two"]}`)), value)
	})

	t.Run("browsing contexts do not share storage", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		_, err := t.Page().Eval(t.Context(), "() => { localStorage.setItem('key', 'value'); return true }")
		require.NoError(t, err)

		other, err := t.Browser().NewIncognitoContext(t.Context())
		require.NoError(t, err)
		t.Defer(func() { _ = other.Close() })
		otherPage, err := other.NewPage(t.Context())
		require.NoError(t, err)
		require.NoError(t, otherPage.Navigate(t.Context(), t.Server().EmptyPageURL()))

		value, err := otherPage.Eval(t.Context(), "() => localStorage.getItem('key')")
		require.NoError(t, err)
		assert.True(t, value.IsNull(), "storage leaked between contexts: %s", value)
	})

	t.Run("storage does not survive to the next test", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		value, err := t.Page().Eval(t.Context(), "() => localStorage.getItem('key')")
		require.NoError(t, err)
		assert.True(t, value.IsNull())
	})

	t.Run("gzip-encoded page", func(t *harness.T) {
		t.Server().EnableGzip("/empty.html")
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		assert.Equal(t, "complete", evalString(t, "() => document.readyState"))
	})

	r.ItFailsFirefox("user agent client hints", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		value, err := t.Page().Eval(t.Context(), "() => navigator.userAgentData.brands.length")
		require.NoError(t, err)
		assert.Greater(t, value.IntValue(), 0)
	}).Register(t)

	r.ItChromeOnly("user agent reflects headless mode", func(t *harness.T) {
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		userAgent := evalString(t, "() => navigator.userAgent")
		assert.Equal(t, t.IsHeadless(), strings.Contains(userAgent, "HeadlessChrome"), "user agent: %s", userAgent)
	}).Register(t)
}

const emptyPageScreenshot = "empty-page.png"

func DoScreenshotTests(t *harness.T, r *harness.Registrar) {
	// golden images are rendered by the managed browser build
	r.ItOnlyRegularInstall("empty page", func(t *harness.T) {
		if !t.IsHeadless() {
			t.SkipWithReason("screenshots are only stable in headless mode")
		}
		if !t.HasGolden(emptyPageScreenshot) {
			t.SkipWithReason("no golden screenshot for this browser yet; run with -update-golden to record one")
		}
		require.NoError(t, t.Page().Navigate(t.Context(), t.Server().EmptyPageURL()))
		data, err := t.Page().Screenshot(t.Context())
		require.NoError(t, err)
		t.RequireGolden(emptyPageScreenshot, data)
	}).Register(t)
}
