// Package testutil provides testing utilities for the pickup client.
package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// ErrOffline is returned by the origin transport while the origin is offline.
var ErrOffline = errors.New("testutil: origin offline")

// MockResponse defines the behavior for a mock origin path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable mock application origin for testing.
// It serves the shell assets by default and can be switched offline.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	offline  bool

	// Tracking
	requests    map[string]int
	LastHeaders http.Header
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.LastHeaders = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Transport returns a RoundTripper that fails with ErrOffline while the
// origin is offline and otherwise reaches the mock server.
func (m *MockOrigin) Transport() http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if m.IsOffline() {
			return nil, ErrOffline
		}
		return m.server.Client().Transport.RoundTrip(req)
	})
}

// SetOffline toggles network reachability for Transport.
func (m *MockOrigin) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// IsOffline reports whether the origin is currently unreachable.
func (m *MockOrigin) IsOffline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offline
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.LastHeaders = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests that reached path.
func (m *MockOrigin) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests that reached the server.
func (m *MockOrigin) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// ShellBody is the document served for "/" and "/index.html" by default.
const ShellBody = `<!doctype html><html><body><div id="root"></div></body></html>`

// defaultHandler serves the application shell; everything else is 404.
func (m *MockOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ShellBody))
	case "/manifest.json":
		w.Header().Set("Content-Type", "application/manifest+json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"name":"Pickup","start_url":"/"}`))
	case "/assets/icon-192.png", "/assets/icon-512.png":
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	default:
		http.NotFound(w, r)
	}
}

// NewStaticResponse creates a 200 OK response with the given content type.
func NewStaticResponse(contentType, body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": contentType},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewPartialContentResponse creates a 206 Partial Content response.
func NewPartialContentResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusPartialContent,
		Body:       body,
		Headers:    map[string]string{"Content-Range": "bytes 0-3/100"},
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
