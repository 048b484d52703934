// Package browser defines the narrow interface that the harness uses to drive a browser, and
// adapters for the automation libraries that implement it.
//
// Chromium is driven through Rod over the Chrome DevTools Protocol. Firefox is driven through
// Playwright, since Rod only speaks CDP.
package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Product identifies which browser is under test.
type Product string

const (
	Chromium Product = "chromium"
	Firefox  Product = "firefox"
)

// ParseProduct maps a user-supplied product name to a Product. The second return value is
// false if the name was not recognized, in which case Chromium is returned.
func ParseProduct(name string) (Product, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "firefox":
		return Firefox, true
	case "", "chrome", "chromium":
		return Chromium, true
	default:
		return Chromium, false
	}
}

// LaunchOptions controls how a browser process is started.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string
	DumpIO         bool
	Args           []string
	SlowMo         time.Duration
	Timeout        time.Duration

	// Devtools opens the developer tools for each tab. Only Chromium supports it.
	Devtools bool

	// IgnoreDefaultArgs names command-line flags that the launcher would normally pass and
	// should leave out.
	IgnoreDefaultArgs []string

	// Extra holds launch options that the harness could not interpret: unknown keys, and known
	// keys whose values have the wrong type. Launchers log a warning for each of them.
	Extra ldvalue.ValueMap
}

// warnIgnoredOptions logs a warning for every launch option that a launcher is not going to
// apply: everything in opts.Extra, plus the named options the launcher does not support.
func warnIgnoredOptions(loggers ldlog.Loggers, product Product, opts LaunchOptions, unsupported ...string) {
	keys := opts.Extra.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		loggers.Warnf("Ignoring launch option %q for %s: unknown option or wrong value type (%s)",
			key, product, opts.Extra.Get(key).JSONString())
	}
	for _, name := range unsupported {
		loggers.Warnf("Ignoring launch option %q: not supported for %s", name, product)
	}
}

// Launcher starts browser processes for one product.
type Launcher interface {
	Product() Product

	// ExecutablePath returns the path of the managed browser binary that Launch uses when no
	// override is given. The file is not guaranteed to exist.
	ExecutablePath(ctx context.Context) (string, error)

	// Install downloads the managed browser binary if it is not already present.
	Install(ctx context.Context) error

	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)

	// Close releases anything the launcher itself holds, such as a driver process.
	Close() error
}

// Browser is a running browser process.
type Browser interface {
	// NewIncognitoContext creates an isolated browsing context, with its own cookies and
	// storage, within the browser.
	NewIncognitoContext(ctx context.Context) (Context, error)

	Version(ctx context.Context) (string, error)

	// Close shuts down the browser process.
	Close() error
}

// Context is an isolated browsing context. Closing it closes all of its pages.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab within a Context.
type Page interface {
	Navigate(ctx context.Context, url string) error

	// Eval evaluates a JavaScript function expression, such as "() => document.title", and
	// returns its result as JSON.
	Eval(ctx context.Context, js string) (ldvalue.Value, error)

	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// NewLauncher returns the Launcher for the given product.
func NewLauncher(product Product, loggers ldlog.Loggers) (Launcher, error) {
	switch product {
	case Chromium:
		return newRodLauncher(loggers), nil
	case Firefox:
		return newPlaywrightLauncher(product, loggers), nil
	default:
		return nil, fmt.Errorf("unsupported browser product %q", product)
	}
}
