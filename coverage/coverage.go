// Package coverage records which browser API methods a test run exercised.
package coverage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/launchdarkly/browser-contract-tests/browser"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Methods lists every browser API method that a Recorder tracks.
var Methods = []string{
	"Launcher.ExecutablePath",
	"Launcher.Install",
	"Launcher.Launch",
	"Browser.NewIncognitoContext",
	"Browser.Version",
	"Browser.Close",
	"Context.NewPage",
	"Context.Close",
	"Page.Navigate",
	"Page.Eval",
	"Page.Screenshot",
	"Page.Close",
}

// Recorder counts calls to browser API methods.
type Recorder struct {
	lock   sync.Mutex
	counts map[string]int
}

// NewRecorder creates a Recorder with no calls recorded.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int)}
}

func (r *Recorder) record(method string) {
	r.lock.Lock()
	r.counts[method]++
	r.lock.Unlock()
}

// Count returns the number of recorded calls to a method.
func (r *Recorder) Count(method string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.counts[method]
}

// Missing returns the tracked methods that were never called, in the order of Methods.
func (r *Recorder) Missing() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	var ret []string
	for _, m := range Methods {
		if r.counts[m] == 0 {
			ret = append(ret, m)
		}
	}
	return ret
}

// Report writes a summary of covered and uncovered methods.
func (r *Recorder) Report(w io.Writer) error {
	r.lock.Lock()
	covered := make([]string, 0, len(r.counts))
	for m := range r.counts {
		covered = append(covered, m)
	}
	counts := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	r.lock.Unlock()
	sort.Strings(covered)

	missing := r.Missing()
	if _, err := fmt.Fprintf(w, "Browser API coverage: %d of %d methods\n",
		len(Methods)-len(missing), len(Methods)); err != nil {
		return err
	}
	for _, m := range covered {
		if _, err := fmt.Fprintf(w, "  covered:   %s (%d)\n", m, counts[m]); err != nil {
			return err
		}
	}
	for _, m := range missing {
		if _, err := fmt.Fprintf(w, "  uncovered: %s\n", m); err != nil {
			return err
		}
	}
	return nil
}

// Track returns a Launcher that records every call made through it, and through the browsers,
// contexts and pages it creates, before delegating to l.
func (r *Recorder) Track(l browser.Launcher) browser.Launcher {
	return &trackedLauncher{Launcher: l, r: r}
}

type trackedLauncher struct {
	browser.Launcher
	r *Recorder
}

func (t *trackedLauncher) ExecutablePath(ctx context.Context) (string, error) {
	t.r.record("Launcher.ExecutablePath")
	return t.Launcher.ExecutablePath(ctx)
}

func (t *trackedLauncher) Install(ctx context.Context) error {
	t.r.record("Launcher.Install")
	return t.Launcher.Install(ctx)
}

func (t *trackedLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	t.r.record("Launcher.Launch")
	b, err := t.Launcher.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &trackedBrowser{b: b, r: t.r}, nil
}

type trackedBrowser struct {
	b browser.Browser
	r *Recorder
}

func (t *trackedBrowser) NewIncognitoContext(ctx context.Context) (browser.Context, error) {
	t.r.record("Browser.NewIncognitoContext")
	c, err := t.b.NewIncognitoContext(ctx)
	if err != nil {
		return nil, err
	}
	return &trackedContext{c: c, r: t.r}, nil
}

func (t *trackedBrowser) Version(ctx context.Context) (string, error) {
	t.r.record("Browser.Version")
	return t.b.Version(ctx)
}

func (t *trackedBrowser) Close() error {
	t.r.record("Browser.Close")
	return t.b.Close()
}

type trackedContext struct {
	c browser.Context
	r *Recorder
}

func (t *trackedContext) NewPage(ctx context.Context) (browser.Page, error) {
	t.r.record("Context.NewPage")
	p, err := t.c.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	return &trackedPage{p: p, r: t.r}, nil
}

func (t *trackedContext) Close() error {
	t.r.record("Context.Close")
	return t.c.Close()
}

type trackedPage struct {
	p browser.Page
	r *Recorder
}

func (t *trackedPage) Navigate(ctx context.Context, url string) error {
	t.r.record("Page.Navigate")
	return t.p.Navigate(ctx, url)
}

func (t *trackedPage) Eval(ctx context.Context, js string) (ldvalue.Value, error) {
	t.r.record("Page.Eval")
	return t.p.Eval(ctx, js)
}

func (t *trackedPage) Screenshot(ctx context.Context) ([]byte, error) {
	t.r.record("Page.Screenshot")
	return t.p.Screenshot(ctx)
}

func (t *trackedPage) Close() error {
	t.r.record("Page.Close")
	return t.p.Close()
}
