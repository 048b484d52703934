// Package config resolves the harness configuration from environment variables.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchdarkly/browser-contract-tests/browser"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const (
	EnvProduct            = "BROWSER_PRODUCT"
	EnvAltInstall         = "BROWSER_ALT_INSTALL"
	EnvHeadless           = "BROWSER_HEADLESS"
	EnvBinary             = "BROWSER_BINARY"
	EnvExtraLaunchOptions = "BROWSER_EXTRA_LAUNCH_OPTIONS"
	EnvDumpIO             = "BROWSER_DUMPIO"
	EnvCoverage           = "BROWSER_COVERAGE"
	EnvFixturePort        = "BROWSER_FIXTURE_PORT"
	EnvAssetsDir          = "BROWSER_ASSETS_DIR"
	EnvGoldenRoot         = "BROWSER_GOLDEN_ROOT"

	// CacheDir is the subdirectory of the assets directory that is served with HTTP caching
	// headers.
	CacheDir = "cached"
)

// EnvVars lists every environment variable that Resolve reads.
var EnvVars = []string{
	EnvProduct,
	EnvAltInstall,
	EnvHeadless,
	EnvBinary,
	EnvExtraLaunchOptions,
	EnvDumpIO,
	EnvCoverage,
	EnvFixturePort,
	EnvAssetsDir,
	EnvGoldenRoot,
}

// ErrBrowserNotInstalled is returned by VerifyInstall when the managed browser binary is missing.
var ErrBrowserNotInstalled = errors.New("browser is not installed")

// LookupFunc looks up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Config is the resolved harness configuration. It is computed once by Resolve and not modified
// afterward.
type Config struct {
	Product            browser.Product
	Headless           bool
	ExecutablePath     null.String
	ExtraLaunchOptions ldvalue.ValueMap
	AltInstall         bool
	DumpIO             bool
	Coverage           bool
	FixturePort        int
	AssetsDir          string
	GoldenRoot         string
}

type envVars struct {
	Product            string      `envconfig:"BROWSER_PRODUCT"`
	AltInstall         bool        `envconfig:"BROWSER_ALT_INSTALL"`
	Headless           bool        `envconfig:"BROWSER_HEADLESS" default:"true"`
	Binary             null.String `envconfig:"BROWSER_BINARY"`
	ExtraLaunchOptions string      `envconfig:"BROWSER_EXTRA_LAUNCH_OPTIONS"`
	DumpIO             bool        `envconfig:"BROWSER_DUMPIO"`
	Coverage           bool        `envconfig:"BROWSER_COVERAGE"`
	FixturePort        int         `envconfig:"BROWSER_FIXTURE_PORT" default:"8907"`
	AssetsDir          string      `envconfig:"BROWSER_ASSETS_DIR" default:"testdata/assets"`
	GoldenRoot         string      `envconfig:"BROWSER_GOLDEN_ROOT" default:"testdata"`
}

// Resolve reads the configuration from the environment. If lookup is nil, os.LookupEnv is used.
//
// A malformed BROWSER_EXTRA_LAUNCH_OPTIONS value is logged as a warning and ignored. Any other
// unparseable value is returned as an error.
func Resolve(loggers ldlog.Loggers, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var vars envVars
	if err := envconfig.Process("", &vars, lookup); err != nil {
		return Config{}, fmt.Errorf("invalid environment configuration: %w", err)
	}

	product, known := browser.ParseProduct(vars.Product)
	if !known {
		loggers.Warnf("Unknown %s value %q; using %s", EnvProduct, vars.Product, product)
	}
	if vars.FixturePort <= 0 || vars.FixturePort >= 65535 {
		return Config{}, fmt.Errorf("%s must be between 1 and 65534, got %d", EnvFixturePort, vars.FixturePort)
	}

	return Config{
		Product:            product,
		Headless:           vars.Headless,
		ExecutablePath:     vars.Binary,
		ExtraLaunchOptions: parseExtraLaunchOptions(vars.ExtraLaunchOptions, loggers),
		AltInstall:         vars.AltInstall,
		DumpIO:             vars.DumpIO,
		Coverage:           vars.Coverage,
		FixturePort:        vars.FixturePort,
		AssetsDir:          vars.AssetsDir,
		GoldenRoot:         vars.GoldenRoot,
	}, nil
}

func parseExtraLaunchOptions(raw string, loggers ldlog.Loggers) ldvalue.ValueMap {
	if strings.TrimSpace(raw) == "" {
		return ldvalue.ValueMap{}
	}
	var value ldvalue.Value
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		loggers.Warnf("Ignoring %s, it is not valid JSON: %s", EnvExtraLaunchOptions, err)
		return ldvalue.ValueMap{}
	}
	if value.Type() != ldvalue.ObjectType {
		loggers.Warnf("Ignoring %s, it must be a JSON object but was %s", EnvExtraLaunchOptions, value.Type())
		return ldvalue.ValueMap{}
	}
	return value.AsValueMap()
}

func (c Config) IsFirefox() bool { return c.Product == browser.Firefox }

func (c Config) IsChromium() bool { return c.Product == browser.Chromium }

// IsStandardInstall is true when the browser comes from the managed download rather than an
// alternative installation.
func (c Config) IsStandardInstall() bool { return !c.AltInstall }

// GoldenDir is where approved golden files for the configured product are stored.
func (c Config) GoldenDir() string {
	return filepath.Join(c.GoldenRoot, "golden-"+string(c.Product))
}

// OutputDir is where mismatching golden artifacts for the configured product are written.
func (c Config) OutputDir() string {
	return filepath.Join(c.GoldenRoot, "output-"+string(c.Product))
}

// LaunchOptions merges the extra launch options into the defaults derived from the rest of the
// configuration. Keys it does not recognize, or whose values have the wrong type, are passed
// through in LaunchOptions.Extra.
func (c Config) LaunchOptions() browser.LaunchOptions {
	opts := browser.LaunchOptions{
		Headless:       c.Headless,
		ExecutablePath: c.ExecutablePath.String,
		DumpIO:         c.DumpIO,
	}
	extra := ldvalue.ValueMapBuild()
	extraCount := 0
	for _, key := range c.ExtraLaunchOptions.Keys() {
		value := c.ExtraLaunchOptions.Get(key)
		if applyLaunchOption(&opts, key, value) {
			continue
		}
		extra.Set(key, value)
		extraCount++
	}
	if extraCount > 0 {
		opts.Extra = extra.Build()
	}
	return opts
}

func applyLaunchOption(opts *browser.LaunchOptions, key string, value ldvalue.Value) bool {
	switch key {
	case "headless":
		if value.IsBool() {
			opts.Headless = value.BoolValue()
			return true
		}
	case "executablePath":
		if value.IsString() {
			opts.ExecutablePath = value.StringValue()
			return true
		}
	case "dumpio":
		if value.IsBool() {
			opts.DumpIO = value.BoolValue()
			return true
		}
	case "args":
		if args, ok := stringArray(value); ok {
			opts.Args = append(opts.Args, args...)
			return true
		}
	case "devtools":
		if value.IsBool() {
			opts.Devtools = value.BoolValue()
			return true
		}
	case "ignoreDefaultArgs":
		if args, ok := stringArray(value); ok {
			opts.IgnoreDefaultArgs = args
			return true
		}
	case "slowMo":
		if value.IsNumber() {
			opts.SlowMo = millis(value.Float64Value())
			return true
		}
	case "timeout":
		if value.IsNumber() {
			opts.Timeout = millis(value.Float64Value())
			return true
		}
	}
	return false
}

func stringArray(value ldvalue.Value) ([]string, bool) {
	if value.Type() != ldvalue.ArrayType {
		return nil, false
	}
	ret := make([]string, 0, value.Count())
	for i := 0; i < value.Count(); i++ {
		item := value.GetByIndex(i)
		if !item.IsString() {
			return nil, false
		}
		ret = append(ret, item.StringValue())
	}
	return ret, true
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// VerifyInstall checks that the browser binary the launcher will use exists. It does nothing
// if an executable override is configured. For Firefox, asking the launcher for its executable
// path starts the Playwright driver, so this must run before any browser is launched.
func VerifyInstall(ctx context.Context, cfg Config, launcher browser.Launcher, fs afero.Fs) error {
	if cfg.ExecutablePath.Valid {
		return nil
	}
	path, err := launcher.ExecutablePath(ctx)
	if err != nil {
		return fmt.Errorf("could not determine %s executable path: %w", cfg.Product, err)
	}
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return fmt.Errorf("%w: %s was not found at %q, run the harness with -install first",
			ErrBrowserNotInstalled, cfg.Product, path)
	}
	return nil
}
