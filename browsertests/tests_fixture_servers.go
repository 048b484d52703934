package browsertests

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/launchdarkly/browser-contract-tests/fixtures"
	"github.com/launchdarkly/browser-contract-tests/harness"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const awaitRequestTimeout = time.Second * 5

type response struct {
	status int
	header http.Header
	body   string
}

func fetch(t *harness.T, server *fixtures.Server, target string, headers ...string) response {
	req, err := http.NewRequestWithContext(t.Context(), "GET", target, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	client := *server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	t.Debug("GET %s -> %d", target, resp.StatusCode)
	return response{status: resp.StatusCode, header: resp.Header, body: string(body)}
}

func DoFixtureServerTests(t *harness.T) {
	t.Run("serves empty page", func(t *harness.T) {
		resp := fetch(t, t.Server(), t.Server().EmptyPageURL())
		assert.Equal(t, 200, resp.status)
		assert.Equal(t, "no-cache, no-store", resp.header.Get("Cache-Control"))
	})

	t.Run("serves empty page over TLS", func(t *harness.T) {
		resp := fetch(t, t.HTTPSServer(), t.HTTPSServer().EmptyPageURL())
		assert.Equal(t, 200, resp.status)
	})

	t.Run("TLS server is on the next port", func(t *harness.T) {
		assert.Equal(t, t.Server().Port()+1, t.HTTPSServer().Port())
	})

	for _, p := range []struct {
		name      string
		getServer func(*harness.T) *fixtures.Server
	}{
		{"HTTP", (*harness.T).Server},
		{"HTTPS", (*harness.T).HTTPSServer},
	} {
		getServer := p.getServer
		t.Run("cross-origin prefix for "+p.name, func(t *harness.T) {
			s := getServer(t)
			primary, err := url.Parse(s.Prefix())
			require.NoError(t, err)
			cross, err := url.Parse(s.CrossOriginPrefix())
			require.NoError(t, err)
			assert.NotEqual(t, primary.Hostname(), cross.Hostname())
			assert.Equal(t, "127.0.0.1", cross.Hostname())
			assert.Equal(t, primary.Port(), cross.Port())
			assert.Equal(t, primary.Scheme, cross.Scheme)
		})
	}

	t.Run("route override", func(t *harness.T) {
		t.Server().SetRoute("/empty.html", httphelpers.HandlerWithStatus(404))
		resp := fetch(t, t.Server(), t.Server().EmptyPageURL())
		assert.Equal(t, 404, resp.status)
	})

	t.Run("route override does not leak into the next test", func(t *harness.T) {
		resp := fetch(t, t.Server(), t.Server().EmptyPageURL())
		assert.Equal(t, 200, resp.status)
	})

	t.Run("cached assets", func(t *harness.T) {
		resp := fetch(t, t.Server(), t.Server().Prefix()+"/cached/one-style.css")
		require.Equal(t, 200, resp.status)
		assert.Equal(t, "public, max-age=31536000", resp.header.Get("Cache-Control"))

		again := fetch(t, t.Server(), t.Server().Prefix()+"/cached/one-style.css",
			"If-None-Match", resp.header.Get("ETag"))
		assert.Equal(t, 304, again.status)
	})

	t.Run("redirect", func(t *harness.T) {
		t.Server().SetRedirect("/redirect.html", "/empty.html")
		resp := fetch(t, t.Server(), t.Server().Prefix()+"/redirect.html")
		assert.Equal(t, 302, resp.status)
		assert.Equal(t, "/empty.html", resp.header.Get("Location"))
	})

	t.Run("basic auth", func(t *harness.T) {
		t.Server().SetAuth("/empty.html", "user", "pass")
		assert.Equal(t, 401, fetch(t, t.Server(), t.Server().EmptyPageURL()).status)

		withCreds := *mustParse(t, t.Server().EmptyPageURL())
		withCreds.User = url.UserPassword("user", "pass")
		assert.Equal(t, 200, fetch(t, t.Server(), withCreds.String()).status)
	})

	t.Run("gzip", func(t *harness.T) {
		t.Server().EnableGzip("/empty.html")
		resp := fetch(t, t.Server(), t.Server().EmptyPageURL(), "Accept-Encoding", "gzip")
		assert.Equal(t, "gzip", resp.header.Get("Content-Encoding"))
	})

	t.Run("wait for request", func(t *harness.T) {
		ctx, cancel := context.WithTimeout(t.Context(), awaitRequestTimeout)
		defer cancel()

		received := make(chan fixtures.Request, 1)
		errs := make(chan error, 1)
		go func() {
			req, err := t.Server().WaitForRequest(ctx, "/empty.html")
			if err != nil {
				errs <- err
				return
			}
			received <- req
		}()

		// the waiter may not be registered yet, so keep asking until it sees a request
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case req := <-received:
				assert.Equal(t, "GET", req.Method)
				return
			case err := <-errs:
				require.NoError(t, err)
			case <-ticker.C:
				_ = fetch(t, t.Server(), t.Server().EmptyPageURL())
			}
		}
	})
}

func mustParse(t *harness.T, rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}
