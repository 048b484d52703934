package browser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type rodLauncher struct {
	loggers ldlog.Loggers
}

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     LaunchOptions
}

type rodContext struct {
	browser *rod.Browser
	opts    LaunchOptions
}

type rodPage struct {
	page *rod.Page
	opts LaunchOptions
}

func newRodLauncher(loggers ldlog.Loggers) *rodLauncher {
	return &rodLauncher{loggers: loggers}
}

func (l *rodLauncher) Product() Product { return Chromium }

func (l *rodLauncher) ExecutablePath(ctx context.Context) (string, error) {
	return launcher.NewBrowser().BinPath(), nil
}

func (l *rodLauncher) Install(ctx context.Context) error {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return fmt.Errorf("failed to download Chromium: %w", err)
	}
	l.loggers.Infof("Chromium is installed at %s", path)
	return nil
}

// Launch starts Chromium with the flags the fixture servers need: the secure server uses a
// self-signed certificate, and tests run inside containers without a sandbox.
func (l *rodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	warnIgnoredOptions(l.loggers, Chromium, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lc := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Devtools(opts.Devtools).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("ignore-certificate-errors")
	if opts.ExecutablePath != "" {
		lc = lc.Bin(opts.ExecutablePath)
	}
	if opts.DumpIO {
		lc = lc.Logger(os.Stderr)
	}
	for _, arg := range opts.Args {
		name, value := splitFlag(arg)
		if value == "" {
			lc = lc.Set(flags.Flag(name))
		} else {
			lc = lc.Set(flags.Flag(name), value)
		}
	}

	for _, arg := range opts.IgnoreDefaultArgs {
		name, _ := splitFlag(arg)
		lc = lc.Delete(flags.Flag(name))
	}

	url, err := lc.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chromium: %w", err)
	}
	l.loggers.Debugf("Chromium is listening at %s", url)

	b := rod.New().ControlURL(url)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	if err := b.Connect(); err != nil {
		lc.Kill()
		return nil, fmt.Errorf("failed to connect to Chromium: %w", err)
	}
	return &rodBrowser{launcher: lc, browser: b, opts: opts}, nil
}

func (l *rodLauncher) Close() error { return nil }

// splitFlag turns "--name=value" into its name and value.
func splitFlag(arg string) (string, string) {
	arg = strings.TrimLeft(arg, "-")
	if i := strings.Index(arg, "="); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

func withTimeout(ctx context.Context, opts LaunchOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (b *rodBrowser) NewIncognitoContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}
	return &rodContext{browser: incognito, opts: b.opts}, nil
}

func (b *rodBrowser) Version(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, b.opts)
	defer cancel()
	v, err := b.browser.Context(ctx).Version()
	if err != nil {
		return "", err
	}
	return v.Product, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	tctx, cancel := withTimeout(ctx, c.opts)
	defer cancel()
	page, err := c.browser.Context(tctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &rodPage{page: page.Context(context.Background()), opts: c.opts}, nil
}

// Close disposes of the incognito browser context, which also closes its pages.
func (c *rodContext) Close() error {
	return c.browser.Close()
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := withTimeout(ctx, p.opts)
	defer cancel()
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (p *rodPage) Eval(ctx context.Context, js string) (ldvalue.Value, error) {
	ctx, cancel := withTimeout(ctx, p.opts)
	defer cancel()
	result, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return ldvalue.Null(), fmt.Errorf("eval failed: %w", err)
	}
	return ldvalue.Parse([]byte(result.Value.JSON("", ""))), nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, p.opts)
	defer cancel()
	return p.page.Context(ctx).Screenshot(false, nil)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
