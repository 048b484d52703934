package fixtures

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // used for ETags, not security
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

func (s *Server) checkAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.lock.Lock()
		creds, ok := s.auths[req.URL.Path]
		s.lock.Unlock()
		if ok {
			username, password, hasAuth := req.BasicAuth()
			if !hasAuth || username != creds.username || password != creds.password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Secure Area"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("HTTP Error 401 Unauthorized: Access is denied"))
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) notifyWaiters(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.logger().Debugf("%s %s%s", req.Method, s.Prefix(), req.URL.RequestURI())

		p := req.URL.Path
		s.lock.Lock()
		waiters := s.waiters[p]
		delete(s.waiters, p)
		s.lock.Unlock()

		if len(waiters) > 0 {
			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
				_ = req.Body.Close()
				req.Body = io.NopCloser(bytes.NewBuffer(body))
			}
			received := Request{
				Method: req.Method,
				Path:   p,
				Header: req.Header.Clone(),
				Body:   body,
			}
			for _, ch := range waiters {
				ch <- received
			}
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) serveRoute(w http.ResponseWriter, req *http.Request) {
	s.lock.Lock()
	route := s.routes[req.URL.Path]
	s.lock.Unlock()
	if route != nil {
		route.ServeHTTP(w, req)
		return
	}
	s.serveFile(w, req)
}

func (s *Server) serveFile(w http.ResponseWriter, req *http.Request) {
	p := req.URL.Path
	s.lock.Lock()
	policy := s.csp[p]
	useGzip := s.gzipPaths[p]
	cacheDir := s.cacheDir
	s.lock.Unlock()

	name := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") {
		name = path.Join(name, "index.html")
	}
	data, ok := s.readAsset(name)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, "File not found: %s", p)
		return
	}

	if cacheDir != "" && strings.HasPrefix(name, "/"+strings.Trim(cacheDir, "/")+"/") {
		etag := fmt.Sprintf(`"%x"`, sha1.Sum(data)) //nolint:gosec
		if req.Header.Get("If-Modified-Since") != "" || req.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=31536000")
		w.Header().Set("ETag", etag)
		w.Header().Set("Last-Modified", s.startTime.Format(http.TimeFormat))
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store")
	}
	if policy != "" {
		w.Header().Set("Content-Security-Policy", policy)
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)

	write := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
	if useGzip {
		s.gzip(write).ServeHTTP(w, req)
		return
	}
	write.ServeHTTP(w, req)
}

// readAsset returns the contents of a regular file in the assets directory.
func (s *Server) readAsset(name string) ([]byte, bool) {
	f, err := s.assets.Open(name)
	if err != nil {
		return nil, false
	}
	defer f.Close() //nolint:errcheck
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return nil, false
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false
	}
	return data, true
}
