// Package fixtures provides the HTTP and HTTPS servers that browser tests load pages from.
//
// A Server serves a directory of static assets. Tests can override individual paths with their
// own handlers, redirects, basic auth, CSP headers or gzip encoding; Reset removes all of those
// without closing the listener, so each test starts from the same state.
package fixtures

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/afero"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldlog"
)

const (
	primaryHost     = "localhost"
	crossOriginHost = "127.0.0.1"
	emptyPagePath   = "/empty.html"
)

// ErrServerReset is returned by WaitForRequest if the server is reset before the request arrives.
var ErrServerReset = errors.New("fixture server was reset")

// Options configures a fixture server.
type Options struct {
	// Fs is the filesystem that AssetsDir is read from. If nil, the OS filesystem is used.
	Fs        afero.Fs
	AssetsDir string

	// Port is the port of the plain server. Start binds the secure server to Port+1.
	Port int

	// CacheDir, if set, enables HTTP cache mode for assets under that subdirectory.
	CacheDir string

	Loggers ldlog.Loggers
}

// Request describes a request received by a fixture server.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type credentials struct {
	username string
	password string
}

// Server is a fixture server bound to a fixed port.
type Server struct {
	secure    bool
	port      int
	ts        *httptest.Server
	assets    http.FileSystem
	gzip      func(http.Handler) http.HandlerFunc
	startTime time.Time

	lock      sync.Mutex
	loggers   ldlog.Loggers
	cacheDir  string
	routes    map[string]http.Handler
	auths     map[string]credentials
	csp       map[string]string
	gzipPaths map[string]bool
	waiters   map[string][]chan Request
}

// Start starts a plain server on opts.Port and a secure server on opts.Port+1, both serving
// opts.AssetsDir with HTTP cache mode enabled for opts.CacheDir. If either port cannot be bound,
// no server is left running and the error is returned.
func Start(ctx context.Context, opts Options) (*Server, *Server, error) {
	plain, err := Create(opts)
	if err != nil {
		return nil, nil, err
	}
	secureOpts := opts
	secureOpts.Port = opts.Port + 1
	secure, err := CreateSecure(secureOpts)
	if err != nil {
		_ = plain.Stop(ctx)
		return nil, nil, err
	}
	if opts.CacheDir != "" {
		plain.EnableHTTPCache(opts.CacheDir)
		secure.EnableHTTPCache(opts.CacheDir)
	}
	return plain, secure, nil
}

// Create starts a plain HTTP fixture server.
func Create(opts Options) (*Server, error) {
	return newServer(opts, false)
}

// CreateSecure starts an HTTPS fixture server. It uses a self-signed certificate for both the
// primary and cross-origin host names; Client returns an *http.Client that trusts it.
func CreateSecure(opts Options) (*Server, error) {
	return newServer(opts, true)
}

func newServer(opts Options, secure bool) (*Server, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	gzipWrapper, err := gzhttp.NewWrapper(gzhttp.MinSize(0))
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if secure {
		certificate, err := serverCertificate()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{certificate}}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", opts.Port, err)
	}

	s := &Server{
		secure:    secure,
		port:      ln.Addr().(*net.TCPAddr).Port,
		assets:    afero.NewHttpFs(fs).Dir(opts.AssetsDir),
		gzip:      gzipWrapper,
		startTime: time.Now().UTC(),
		loggers:   opts.Loggers,
	}
	s.clearOverrides()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.checkAuth)
	router.Use(s.notifyWaiters)
	router.HandleFunc("/*", s.serveRoute)

	s.ts = &httptest.Server{
		Listener: ln,
		TLS:      tlsConfig,
		Config: &http.Server{
			Handler:  router,
			ErrorLog: log.New(errorLogWriter{s}, "", 0),
		},
	}
	if secure {
		s.ts.StartTLS()
	} else {
		s.ts.Start()
	}
	s.logger().Debugf("Fixture server listening at %s", s.Prefix())
	return s, nil
}

func (s *Server) scheme() string {
	if s.secure {
		return "https"
	}
	return "http"
}

func (s *Server) logger() ldlog.Loggers {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.loggers
}

// errorLogWriter sends the http.Server's own error messages, such as TLS handshake failures, to
// the server's current loggers.
type errorLogWriter struct {
	s *Server
}

func (w errorLogWriter) Write(p []byte) (int, error) {
	w.s.logger().Warnf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// SetLoggers changes where the server logs requests. The harness points this at the current
// test's debug output.
func (s *Server) SetLoggers(loggers ldlog.Loggers) {
	s.lock.Lock()
	s.loggers = loggers
	s.lock.Unlock()
}

// Port returns the port the server is listening on.
func (s *Server) Port() int { return s.port }

// IsSecure returns true for an HTTPS server.
func (s *Server) IsSecure() bool { return s.secure }

// Prefix is the base URL of the server, using the "localhost" host name.
func (s *Server) Prefix() string {
	return fmt.Sprintf("%s://%s:%d", s.scheme(), primaryHost, s.port)
}

// CrossOriginPrefix is a base URL for the same server that a browser treats as a different
// origin from Prefix, because it uses the numeric loopback address.
func (s *Server) CrossOriginPrefix() string {
	return fmt.Sprintf("%s://%s:%d", s.scheme(), crossOriginHost, s.port)
}

// EmptyPageURL is the URL of a blank HTML page served by every fixture server.
func (s *Server) EmptyPageURL() string {
	return s.Prefix() + emptyPagePath
}

// Client returns an HTTP client for making requests to the server. For a secure server, the
// client trusts the server's certificate.
func (s *Server) Client() *http.Client {
	return s.ts.Client()
}

// EnableHTTPCache turns on cache mode for assets under the given subdirectory of the assets
// directory.
func (s *Server) EnableHTTPCache(dir string) {
	s.lock.Lock()
	s.cacheDir = dir
	s.lock.Unlock()
}

// SetRoute makes the server respond to requests for path with the given handler instead of
// serving a file.
func (s *Server) SetRoute(path string, handler http.Handler) {
	s.lock.Lock()
	s.routes[path] = handler
	s.lock.Unlock()
}

// SetRedirect makes requests for from receive a 302 redirect to to.
func (s *Server) SetRedirect(from, to string) {
	s.SetRoute(from, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Location", to)
		w.WriteHeader(http.StatusFound)
	}))
}

// SetAuth requires basic authentication with the given credentials for path.
func (s *Server) SetAuth(path, username, password string) {
	s.lock.Lock()
	s.auths[path] = credentials{username: username, password: password}
	s.lock.Unlock()
}

// SetCSP adds a Content-Security-Policy header to the file served for path.
func (s *Server) SetCSP(path, policy string) {
	s.lock.Lock()
	s.csp[path] = policy
	s.lock.Unlock()
}

// EnableGzip makes the server gzip-encode the file served for path, if the client accepts it.
func (s *Server) EnableGzip(path string) {
	s.lock.Lock()
	s.gzipPaths[path] = true
	s.lock.Unlock()
}

// WaitForRequest blocks until the server receives a request for path, the context is done, or
// the server is reset.
func (s *Server) WaitForRequest(ctx context.Context, path string) (Request, error) {
	ch := make(chan Request, 1)
	s.lock.Lock()
	s.waiters[path] = append(s.waiters[path], ch)
	s.lock.Unlock()

	select {
	case req, ok := <-ch:
		if !ok {
			return Request{}, ErrServerReset
		}
		return req, nil
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

// Reset removes every route, redirect, auth requirement, CSP header and gzip setting, and fails
// any pending WaitForRequest calls. The listener is left open.
func (s *Server) Reset() {
	s.lock.Lock()
	waiters := s.waiters
	s.clearOverrides()
	s.lock.Unlock()

	for _, chs := range waiters {
		for _, ch := range chs {
			close(ch)
		}
	}
}

func (s *Server) clearOverrides() {
	s.routes = make(map[string]http.Handler)
	s.auths = make(map[string]credentials)
	s.csp = make(map[string]string)
	s.gzipPaths = make(map[string]bool)
	s.waiters = make(map[string][]chan Request)
}

// Stop closes the listener and waits for active requests to finish, or for the context to be
// done, in which case remaining connections are closed forcibly.
func (s *Server) Stop(ctx context.Context) error {
	s.Reset()
	done := make(chan struct{})
	go func() {
		s.ts.Close()
		close(done)
	}()
	select {
	case <-done:
		s.logger().Debugf("Fixture server at %s stopped", s.Prefix())
		return nil
	case <-ctx.Done():
		s.ts.CloseClientConnections()
		<-done
		return ctx.Err()
	}
}
