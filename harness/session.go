package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/launchdarkly/browser-contract-tests/browser"
	"github.com/launchdarkly/browser-contract-tests/config"
	"github.com/launchdarkly/browser-contract-tests/fixtures"
)

// Session is the state shared by the tests of one suite run: the fixture servers, and the
// browser, browsing context and page when those are in use.
//
// The servers are non-nil from Setup until Teardown. The browser is non-nil from LaunchBrowser
// until CloseBrowser. The browsing context and page are non-nil from BeforeEach(ctx, true) until
// AfterEach. Phases are never run concurrently, so Session has no locking.
type Session struct {
	env *Environment

	server      *fixtures.Server
	httpsServer *fixtures.Server
	browser     browser.Browser
	context     browser.Context
	page        browser.Page
}

// NewSession creates a Session with nothing started yet.
func NewSession(env *Environment) *Session {
	return &Session{env: env}
}

// Setup verifies that the browser is installed and starts both fixture servers.
func (s *Session) Setup(ctx context.Context) error {
	cfg := s.env.config
	if err := config.VerifyInstall(ctx, cfg, s.env.launcher, s.env.fs); err != nil {
		return err
	}
	server, httpsServer, err := fixtures.Start(ctx, fixtures.Options{
		Fs:        s.env.fs,
		AssetsDir: cfg.AssetsDir,
		Port:      cfg.FixturePort,
		CacheDir:  config.CacheDir,
		Loggers:   s.env.loggers,
	})
	if err != nil {
		return fmt.Errorf("failed to start fixture servers: %w", err)
	}
	s.server, s.httpsServer = server, httpsServer
	s.env.loggers.Infof("Fixture servers started at %s and %s", server.Prefix(), httpsServer.Prefix())
	return nil
}

// LaunchBrowser starts the browser with the configured launch options.
func (s *Session) LaunchBrowser(ctx context.Context) error {
	if s.browser != nil {
		return errors.New("browser is already running")
	}
	b, err := s.env.launcher.Launch(ctx, s.env.config.LaunchOptions())
	if err != nil {
		return fmt.Errorf("failed to launch %s: %w", s.env.config.Product, err)
	}
	s.browser = b
	if version, err := b.Version(ctx); err == nil {
		s.env.loggers.Infof("Launched %s", version)
	}
	return nil
}

// CloseBrowser closes the browser if it is running. Any open browsing context goes with it.
func (s *Session) CloseBrowser() error {
	if s.browser == nil {
		return nil
	}
	b := s.browser
	s.browser, s.context, s.page = nil, nil, nil
	if err := b.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

// BeforeEach resets both fixture servers. If withPage is true, it also opens a new incognito
// browsing context, and a page within it, in the running browser.
func (s *Session) BeforeEach(ctx context.Context, withPage bool) error {
	if s.server != nil {
		s.server.Reset()
	}
	if s.httpsServer != nil {
		s.httpsServer.Reset()
	}
	if !withPage {
		return nil
	}
	if s.browser == nil {
		return errors.New("a page was requested but no browser is running")
	}
	bc, err := s.browser.NewIncognitoContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to create browsing context: %w", err)
	}
	page, err := bc.NewPage(ctx)
	if err != nil {
		_ = bc.Close()
		return fmt.Errorf("failed to create page: %w", err)
	}
	s.context, s.page = bc, page
	return nil
}

// AfterEach closes the browsing context opened by BeforeEach, which also closes its page. The
// references are cleared even if closing fails.
func (s *Session) AfterEach() error {
	if s.context == nil {
		return nil
	}
	bc := s.context
	s.context, s.page = nil, nil
	if err := bc.Close(); err != nil {
		return fmt.Errorf("failed to close browsing context: %w", err)
	}
	return nil
}

// Teardown closes the browser if it is still running and stops both fixture servers. It
// attempts every step and returns all of the errors.
func (s *Session) Teardown(ctx context.Context) error {
	var errs []error
	if err := s.AfterEach(); err != nil {
		errs = append(errs, err)
	}
	if err := s.CloseBrowser(); err != nil {
		errs = append(errs, err)
	}
	for _, server := range []*fixtures.Server{s.server, s.httpsServer} {
		if server == nil {
			continue
		}
		if err := server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop fixture server at %s: %w", server.Prefix(), err))
		}
	}
	s.server, s.httpsServer = nil, nil
	return errors.Join(errs...)
}

func (s *Session) Config() config.Config { return s.env.config }

// Server returns the plain HTTP fixture server.
func (s *Session) Server() *fixtures.Server { return s.server }

// HTTPSServer returns the TLS fixture server.
func (s *Session) HTTPSServer() *fixtures.Server { return s.httpsServer }

func (s *Session) Browser() browser.Browser { return s.browser }

func (s *Session) BrowserContext() browser.Context { return s.context }

func (s *Session) Page() browser.Page { return s.page }
