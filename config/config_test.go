package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/browser/fakebrowser"

	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlogtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, browser.Chromium, cfg.Product)
	assert.True(t, cfg.IsChromium())
	assert.False(t, cfg.IsFirefox())
	assert.True(t, cfg.Headless)
	assert.False(t, cfg.ExecutablePath.Valid)
	assert.Equal(t, 0, cfg.ExtraLaunchOptions.Count())
	assert.True(t, cfg.IsStandardInstall())
	assert.False(t, cfg.DumpIO)
	assert.False(t, cfg.Coverage)
	assert.Equal(t, 8907, cfg.FixturePort)
	assert.Equal(t, "testdata/assets", cfg.AssetsDir)
	assert.Equal(t, "testdata/golden-chromium", cfg.GoldenDir())
	assert.Equal(t, "testdata/output-chromium", cfg.OutputDir())
}

func TestResolveFromEnvironment(t *testing.T) {
	cfg, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(map[string]string{
		EnvProduct:            "firefox",
		EnvAltInstall:         "true",
		EnvHeadless:           "false",
		EnvBinary:             "/opt/firefox/firefox",
		EnvExtraLaunchOptions: `{"slowMo": 50}`,
		EnvDumpIO:             "1",
		EnvCoverage:           "true",
		EnvFixturePort:        "9000",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsFirefox())
	assert.False(t, cfg.IsStandardInstall())
	assert.False(t, cfg.Headless)
	assert.Equal(t, null.StringFrom("/opt/firefox/firefox"), cfg.ExecutablePath)
	assert.True(t, cfg.DumpIO)
	assert.True(t, cfg.Coverage)
	assert.Equal(t, 9000, cfg.FixturePort)
	assert.Equal(t, "testdata/golden-firefox", cfg.GoldenDir())
	assert.Equal(t, 50*time.Millisecond, cfg.LaunchOptions().SlowMo)
}

func TestUnknownProductFallsBackToChromiumWithWarning(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	cfg, err := Resolve(mockLog.Loggers, envLookup(map[string]string{EnvProduct: "netscape"}))
	require.NoError(t, err)

	assert.True(t, cfg.IsChromium())
	assert.True(t, mockLog.HasMessageMatch(ldlog.Warn, "Unknown BROWSER_PRODUCT"))
}

func TestMalformedExtraLaunchOptionsAreIgnored(t *testing.T) {
	defaults, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(nil))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"invalid JSON":   `{"headless": fal`,
		"not an object":  `[1, 2, 3]`,
		"bare string":    `"args"`,
		"trailing comma": `{"args": [],}`,
	} {
		t.Run(name, func(t *testing.T) {
			mockLog := ldlogtest.NewMockLog()
			cfg, err := Resolve(mockLog.Loggers, envLookup(map[string]string{EnvExtraLaunchOptions: raw}))
			require.NoError(t, err)

			assert.Equal(t, defaults.LaunchOptions(), cfg.LaunchOptions())
			assert.Len(t, mockLog.GetOutput(ldlog.Warn), 1)
		})
	}
}

func TestInvalidBooleanIsAnError(t *testing.T) {
	_, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(map[string]string{EnvHeadless: "sometimes"}))
	assert.Error(t, err)
}

func TestInvalidFixturePortIsAnError(t *testing.T) {
	_, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(map[string]string{EnvFixturePort: "65535"}))
	assert.Error(t, err)
}

func TestLaunchOptionsMergesExtraOptions(t *testing.T) {
	cfg, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(map[string]string{
		EnvBinary: "/usr/bin/chromium",
		EnvExtraLaunchOptions: `{
			"headless": false,
			"args": ["--window-size=800,600", "--mute-audio"],
			"timeout": 2500,
			"devtools": true,
			"ignoreDefaultArgs": ["--enable-automation"],
			"userDataDir": "/tmp/profile",
			"dumpio": "not a bool"
		}`,
	}))
	require.NoError(t, err)

	opts := cfg.LaunchOptions()
	assert.False(t, opts.Headless)
	assert.Equal(t, "/usr/bin/chromium", opts.ExecutablePath)
	assert.Equal(t, []string{"--window-size=800,600", "--mute-audio"}, opts.Args)
	assert.Equal(t, 2500*time.Millisecond, opts.Timeout)
	assert.False(t, opts.DumpIO)
	assert.True(t, opts.Devtools)
	assert.Equal(t, []string{"--enable-automation"}, opts.IgnoreDefaultArgs)
	assert.Equal(t, 2, opts.Extra.Count())
	assert.Equal(t, "/tmp/profile", opts.Extra.Get("userDataDir").StringValue())
	assert.Equal(t, "not a bool", opts.Extra.Get("dumpio").StringValue())
}

func TestLaunchOptionsRejectsNonStringArgs(t *testing.T) {
	cfg, err := Resolve(ldlog.NewDisabledLoggers(), envLookup(map[string]string{
		EnvExtraLaunchOptions: `{"args": ["--mute-audio", 3]}`,
	}))
	require.NoError(t, err)

	opts := cfg.LaunchOptions()
	assert.Nil(t, opts.Args)
	assert.Equal(t, 1, opts.Extra.Count())
}

func TestVerifyInstall(t *testing.T) {
	ctx := context.Background()
	launcher := fakebrowser.NewLauncher(browser.Chromium)
	launcher.Path = "/browsers/chromium/chrome"

	t.Run("missing binary is fatal", func(t *testing.T) {
		err := VerifyInstall(ctx, Config{Product: browser.Chromium}, launcher, afero.NewMemMapFs())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBrowserNotInstalled))
		assert.Contains(t, err.Error(), "/browsers/chromium/chrome")
		assert.Contains(t, err.Error(), "-install")
	})

	t.Run("present binary", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, launcher.Path, []byte("#!"), 0o755))
		assert.NoError(t, VerifyInstall(ctx, Config{Product: browser.Chromium}, launcher, fs))
	})

	t.Run("override skips check", func(t *testing.T) {
		fresh := fakebrowser.NewLauncher(browser.Chromium)
		cfg := Config{Product: browser.Chromium, ExecutablePath: null.StringFrom("/custom/chrome")}
		assert.NoError(t, VerifyInstall(ctx, cfg, fresh, afero.NewMemMapFs()))
		assert.Equal(t, 0, fresh.Calls("ExecutablePath"))
	})

	t.Run("launcher failure", func(t *testing.T) {
		failing := fakebrowser.NewLauncher(browser.Firefox)
		failing.PathErr = errors.New("driver did not start")
		err := VerifyInstall(ctx, Config{Product: browser.Firefox}, failing, afero.NewMemMapFs())
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrBrowserNotInstalled))
	})
}
