package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type playwrightLauncher struct {
	product Product
	loggers ldlog.Loggers
	pw      *playwright.Playwright
}

type playwrightBrowser struct {
	browser playwright.Browser
}

type playwrightContext struct {
	context playwright.BrowserContext
}

type playwrightPage struct {
	page playwright.Page
}

func newPlaywrightLauncher(product Product, loggers ldlog.Loggers) *playwrightLauncher {
	return &playwrightLauncher{product: product, loggers: loggers}
}

func (l *playwrightLauncher) Product() Product { return l.product }

// driver starts the Playwright driver the first time it is needed. The driver owns the browser
// metadata, so it must be running before the executable path can be computed.
func (l *playwrightLauncher) driver() (*playwright.Playwright, error) {
	if l.pw != nil {
		return l.pw, nil
	}
	pw, err := playwright.Run(&playwright.RunOptions{
		SkipInstallBrowsers: true,
		Browsers:            []string{string(l.product)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Playwright driver: %w", err)
	}
	l.pw = pw
	return pw, nil
}

func (l *playwrightLauncher) browserType(pw *playwright.Playwright) playwright.BrowserType {
	if l.product == Firefox {
		return pw.Firefox
	}
	return pw.Chromium
}

func (l *playwrightLauncher) ExecutablePath(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pw, err := l.driver()
	if err != nil {
		return "", err
	}
	return l.browserType(pw).ExecutablePath(), nil
}

func (l *playwrightLauncher) Install(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{string(l.product)}}); err != nil {
		return fmt.Errorf("failed to install %s: %w", l.product, err)
	}
	l.loggers.Infof("%s is installed", l.product)
	return nil
}

func (l *playwrightLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	var unsupported []string
	if opts.Devtools {
		unsupported = append(unsupported, "devtools")
	}
	if opts.DumpIO {
		unsupported = append(unsupported, "dumpio")
	}
	warnIgnoredOptions(l.loggers, l.product, opts, unsupported...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := l.driver()
	if err != nil {
		return nil, err
	}
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if len(opts.IgnoreDefaultArgs) > 0 {
		launchOpts.IgnoreDefaultArgs = opts.IgnoreDefaultArgs
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	if opts.Timeout > 0 {
		launchOpts.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}
	b, err := l.browserType(pw).Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", l.product, err)
	}
	return &playwrightBrowser{browser: b}, nil
}

func (l *playwrightLauncher) Close() error {
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return err
}

func (b *playwrightBrowser) NewIncognitoContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return &playwrightContext{context: bc}, nil
}

func (b *playwrightBrowser) Version(ctx context.Context) (string, error) {
	return b.browser.Version(), nil
}

func (b *playwrightBrowser) Close() error {
	return b.browser.Close()
}

func (c *playwrightContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := c.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (c *playwrightContext) Close() error {
	return c.context.Close()
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) Eval(ctx context.Context, js string) (ldvalue.Value, error) {
	if err := ctx.Err(); err != nil {
		return ldvalue.Null(), err
	}
	result, err := p.page.Evaluate(js)
	if err != nil {
		return ldvalue.Null(), fmt.Errorf("eval failed: %w", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return ldvalue.Null(), err
	}
	return ldvalue.Parse(data), nil
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
