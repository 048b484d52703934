package harness

import (
	"context"
	"fmt"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/fixtures"
	"github.com/launchdarkly/browser-contract-tests/framework"
)

// Hooks selects which parts of the session a describe block sets up for its tests.
type Hooks int

const (
	// ServersOnly tests get freshly reset fixture servers and nothing else.
	ServersOnly Hooks = iota

	// SharedBrowser launches one browser when the block starts and closes it when the block
	// ends. Tests in the block share it.
	SharedBrowser

	// FreshPage is SharedBrowser plus a new incognito browsing context and page for every test.
	FreshPage
)

func (h Hooks) String() string {
	switch h {
	case ServersOnly:
		return "servers only"
	case SharedBrowser:
		return "shared browser"
	case FreshPage:
		return "fresh page"
	default:
		return fmt.Sprintf("Hooks(%d)", int(h))
	}
}

// T represents a test, or a group of tests, in a browser contract test suite.
//
// It implements the same basic functionality as Go's testing.T, on top of our framework package,
// so the assert and require packages can be used with it. It also gives tests access to the
// Session: the fixture servers, and the browser and page if the enclosing describe block asked
// for them.
type T struct {
	context *framework.Context
	ctx     context.Context
	session *Session
	hooks   Hooks
	inTest  bool
}

// RunSuite runs a suite: it sets up the session, calls action with the root T, and tears the
// session down afterward. If setup fails, no tests are run and the failure is reported against
// the root of the suite.
func RunSuite(
	ctx context.Context,
	env *Environment,
	filter framework.Filter,
	testLogger framework.TestLogger,
	action func(*T),
) framework.Results {
	return framework.Run(filter, testLogger, func(c *framework.Context) {
		session := NewSession(env)
		c.Defer(func() {
			if err := session.Teardown(ctx); err != nil {
				c.Errorf("suite teardown failed: %s", err)
			}
		})
		if err := session.Setup(ctx); err != nil {
			c.Errorf("suite setup failed: %s", err)
			c.FailNow()
		}
		action(&T{context: c, ctx: ctx, session: session})
	})
}

// Describe runs a group of tests that share the given hooks. With SharedBrowser or FreshPage, a
// browser is launched for the group unless one is already running, and closed when the group
// ends. A launch failure fails the group without running its tests.
//
// Inside a test, Describe only groups subtests: they share the outer test's servers and page,
// as with Run.
func (t *T) Describe(name string, hooks Hooks, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		t1 := &T{context: c, ctx: t.ctx, session: t.session, hooks: hooks, inTest: t.inTest}
		if hooks != ServersOnly && t.session.Browser() == nil {
			if err := t.session.LaunchBrowser(t.ctx); err != nil {
				c.Errorf("%s", err)
				c.FailNow()
			}
			c.Defer(func() {
				if err := t.session.CloseBrowser(); err != nil {
					t.session.env.loggers.Errorf("%s", err)
					c.Debug("%s", err)
				}
			})
		}
		action(t1)
	})
}

// Run runs a test. Before the action is called, the fixture servers are reset and, if the
// enclosing describe block uses FreshPage, a new browsing context and page are opened; they are
// closed after the action returns, whether or not it passed.
//
// Calling Run from within a test runs a subtest that shares the outer test's page.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		t1 := &T{context: c, ctx: t.ctx, session: t.session, hooks: t.hooks, inTest: true}
		if t.inTest {
			action(t1)
			return
		}
		t1.beforeEach()
		action(t1)
	})
}

func (t *T) beforeEach() {
	s := t.session
	c := t.context
	c.Defer(func() {
		if err := s.AfterEach(); err != nil {
			s.env.loggers.Errorf("Cleanup after %q: %s", c.ID(), err)
			c.Debug("cleanup failed: %s", err)
		}
		for _, server := range []*fixtures.Server{s.Server(), s.HTTPSServer()} {
			if server != nil {
				server.SetLoggers(s.env.loggers)
			}
		}
	})
	if err := s.BeforeEach(t.ctx, t.hooks == FreshPage); err != nil {
		c.Errorf("per-test setup failed: %s", err)
		c.FailNow()
	}
	for _, server := range []*fixtures.Server{s.Server(), s.HTTPSServer()} {
		if server != nil {
			server.SetLoggers(framework.ToLoggers(c.DebugLogger()))
		}
	}
}

// Context returns the context.Context that the suite is running under, for passing to browser
// operations.
func (t *T) Context() context.Context { return t.ctx }

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Skip marks the test as skipped and exits it.
func (t *T) Skip() {
	t.context.Skip()
}

// SkipWithReason is like Skip, but the reason is shown in the test output.
func (t *T) SkipWithReason(reason string) {
	t.context.SkipWithReason(reason)
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Defer schedules a function to run when the test exits, such as restoring a route that the
// test replaced. Deferred functions run before the test's browsing context is closed.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

func (t *T) ID() framework.TestID { return t.context.ID() }

func (t *T) Config() config.Config { return t.session.Config() }

// Server returns the plain HTTP fixture server.
func (t *T) Server() *fixtures.Server { return t.session.Server() }

// HTTPSServer returns the TLS fixture server.
func (t *T) HTTPSServer() *fixtures.Server { return t.session.HTTPSServer() }

// Browser returns the running browser. It is nil outside of a SharedBrowser or FreshPage block.
func (t *T) Browser() browser.Browser { return t.session.Browser() }

// BrowserContext returns the test's incognito browsing context. It is nil unless the enclosing
// block uses FreshPage.
func (t *T) BrowserContext() browser.Context { return t.session.BrowserContext() }

// Page returns the test's page. It is nil unless the enclosing block uses FreshPage.
func (t *T) Page() browser.Page { return t.session.Page() }

func (t *T) IsFirefox() bool { return t.session.Config().IsFirefox() }

func (t *T) IsChromium() bool { return t.session.Config().IsChromium() }

func (t *T) IsHeadless() bool { return t.session.Config().LaunchOptions().Headless }

// HasGolden returns true if RequireGolden can compare against a golden file called name, either
// because one exists or because golden files are being updated.
func (t *T) HasGolden(name string) bool {
	return t.session.env.golden.Has(name)
}

// RequireGolden compares data against the golden file called name, and fails the test
// immediately if it does not match.
func (t *T) RequireGolden(name string, data []byte) {
	if err := t.session.env.golden.Compare(name, data); err != nil {
		t.Errorf("%s", err)
		t.FailNow()
	}
}
