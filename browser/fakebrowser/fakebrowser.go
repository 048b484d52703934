// Package fakebrowser provides in-memory implementations of the browser interfaces, for testing
// code that drives a browser without starting one.
package fakebrowser

import (
	"context"
	"fmt"
	"sync"

	"github.com/launchdarkly/browser-contract-tests/browser"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Launcher is a fake browser.Launcher. Set the exported error fields to make the corresponding
// operations fail.
type Launcher struct {
	Path       string
	PathErr    error
	InstallErr error
	LaunchErr  error

	// Launched contains every Browser returned by Launch, in order.
	Launched []*Browser

	product browser.Product
	calls   map[string]int
	lock    sync.Mutex
}

type Browser struct {
	Options  browser.LaunchOptions
	Closed   bool
	CloseErr error

	// ContextErr makes NewIncognitoContext fail.
	ContextErr error
	Contexts   []*Context

	owner *Launcher
}

type Context struct {
	Closed   bool
	CloseErr error
	PageErr  error
	Pages    []*Page

	owner *Launcher
	id    int
}

type Page struct {
	URL            string
	Closed         bool
	EvalResult     ldvalue.Value
	EvalErr        error
	ScreenshotData []byte
	Context        *Context

	owner *Launcher
}

var _ browser.Launcher = (*Launcher)(nil)
var _ browser.Browser = (*Browser)(nil)
var _ browser.Context = (*Context)(nil)
var _ browser.Page = (*Page)(nil)

func NewLauncher(product browser.Product) *Launcher {
	return &Launcher{
		product: product,
		Path:    "/fake/" + string(product),
		calls:   make(map[string]int),
	}
}

func (l *Launcher) record(method string) {
	l.lock.Lock()
	l.calls[method]++
	l.lock.Unlock()
}

// Calls returns how many times the named method was called on the launcher or on anything it
// created, for instance "Launch" or "Page.Navigate".
func (l *Launcher) Calls(method string) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.calls[method]
}

func (l *Launcher) Product() browser.Product { return l.product }

func (l *Launcher) ExecutablePath(ctx context.Context) (string, error) {
	l.record("ExecutablePath")
	return l.Path, l.PathErr
}

func (l *Launcher) Install(ctx context.Context) error {
	l.record("Install")
	return l.InstallErr
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	l.record("Launch")
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &Browser{Options: opts, owner: l}
	l.Launched = append(l.Launched, b)
	return b, nil
}

func (l *Launcher) Close() error {
	l.record("Close")
	return nil
}

// Last returns the most recently launched browser, or nil.
func (l *Launcher) Last() *Browser {
	if len(l.Launched) == 0 {
		return nil
	}
	return l.Launched[len(l.Launched)-1]
}

func (b *Browser) NewIncognitoContext(ctx context.Context) (browser.Context, error) {
	b.owner.record("Browser.NewIncognitoContext")
	if b.Closed {
		return nil, fmt.Errorf("browser is closed")
	}
	if b.ContextErr != nil {
		return nil, b.ContextErr
	}
	c := &Context{owner: b.owner, id: len(b.Contexts) + 1}
	b.Contexts = append(b.Contexts, c)
	return c, nil
}

func (b *Browser) Version(ctx context.Context) (string, error) {
	b.owner.record("Browser.Version")
	return "Fake/" + string(b.owner.product), nil
}

func (b *Browser) Close() error {
	b.owner.record("Browser.Close")
	b.Closed = true
	for _, c := range b.Contexts {
		_ = c.close()
	}
	return b.CloseErr
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	c.owner.record("Context.NewPage")
	if c.Closed {
		return nil, fmt.Errorf("context %d is closed", c.id)
	}
	if c.PageErr != nil {
		return nil, c.PageErr
	}
	p := &Page{Context: c, owner: c.owner, EvalResult: ldvalue.Null()}
	c.Pages = append(c.Pages, p)
	return p, nil
}

func (c *Context) Close() error {
	c.owner.record("Context.Close")
	return c.close()
}

func (c *Context) close() error {
	c.Closed = true
	for _, p := range c.Pages {
		p.Closed = true
	}
	return c.CloseErr
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.owner.record("Page.Navigate")
	if p.Closed {
		return fmt.Errorf("page is closed")
	}
	p.URL = url
	return nil
}

func (p *Page) Eval(ctx context.Context, js string) (ldvalue.Value, error) {
	p.owner.record("Page.Eval")
	return p.EvalResult, p.EvalErr
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.owner.record("Page.Screenshot")
	return p.ScreenshotData, nil
}

func (p *Page) Close() error {
	p.owner.record("Page.Close")
	p.Closed = true
	return nil
}
