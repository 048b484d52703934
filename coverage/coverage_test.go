package coverage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/browser/fakebrowser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackRecordsCallsThroughAllLayers(t *testing.T) {
	ctx := context.Background()
	fake := fakebrowser.NewLauncher(browser.Chromium)
	r := NewRecorder()
	l := r.Track(fake)

	assert.Equal(t, browser.Chromium, l.Product())
	b, err := l.Launch(ctx, browser.LaunchOptions{Headless: true})
	require.NoError(t, err)
	bc, err := b.NewIncognitoContext(ctx)
	require.NoError(t, err)
	p, err := bc.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, "http://localhost/empty.html"))
	require.NoError(t, p.Navigate(ctx, "http://localhost/other.html"))
	require.NoError(t, bc.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, 1, r.Count("Launcher.Launch"))
	assert.Equal(t, 1, r.Count("Browser.NewIncognitoContext"))
	assert.Equal(t, 1, r.Count("Context.NewPage"))
	assert.Equal(t, 2, r.Count("Page.Navigate"))
	assert.Equal(t, 1, r.Count("Context.Close"))
	assert.Equal(t, 1, r.Count("Browser.Close"))

	// the wrapped launcher saw the same calls
	assert.Equal(t, 2, fake.Calls("Page.Navigate"))
	assert.Equal(t, "http://localhost/other.html", fake.Last().Contexts[0].Pages[0].URL)

	assert.Equal(t, []string{
		"Launcher.ExecutablePath",
		"Launcher.Install",
		"Browser.Version",
		"Page.Eval",
		"Page.Screenshot",
		"Page.Close",
	}, r.Missing())
}

func TestTrackPassesErrorsThrough(t *testing.T) {
	fake := fakebrowser.NewLauncher(browser.Firefox)
	fake.LaunchErr = errors.New("no display")
	r := NewRecorder()

	_, err := r.Track(fake).Launch(context.Background(), browser.LaunchOptions{})
	assert.Equal(t, fake.LaunchErr, err)
	assert.Equal(t, 1, r.Count("Launcher.Launch"))
}

func TestReport(t *testing.T) {
	r := NewRecorder()
	l := r.Track(fakebrowser.NewLauncher(browser.Chromium))
	_, _ = l.ExecutablePath(context.Background())
	_, _ = l.ExecutablePath(context.Background())

	var buf bytes.Buffer
	require.NoError(t, r.Report(&buf))
	out := buf.String()
	assert.Contains(t, out, "Browser API coverage: 1 of 12 methods\n")
	assert.Contains(t, out, "  covered:   Launcher.ExecutablePath (2)\n")
	assert.Contains(t, out, "  uncovered: Page.Navigate\n")
	assert.NotContains(t, out, "uncovered: Launcher.ExecutablePath")
}
