package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// RequestKey identifies a cached response: request method plus normalized URL.
type RequestKey struct {
	// Method is the upper-cased HTTP method (GET when empty)
	Method string

	// URL is the absolute request URL without fragment
	URL string
}

// NewRequestKey builds a normalized key.
// Scheme and host are lower-cased, the fragment is dropped, an empty path
// becomes "/" and query parameters are sorted so equivalent URLs collide.
func NewRequestKey(method string, u *url.URL) RequestKey {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if u == nil {
		return RequestKey{Method: method}
	}

	norm := *u
	norm.Scheme = strings.ToLower(norm.Scheme)
	norm.Host = strings.ToLower(norm.Host)
	norm.Fragment = ""
	norm.RawFragment = ""
	norm.User = nil
	if norm.Path == "" {
		norm.Path = "/"
		norm.RawPath = ""
	}
	if norm.RawQuery != "" {
		norm.RawQuery = norm.Query().Encode()
	}

	return RequestKey{Method: method, URL: norm.String()}
}

// KeyForRequest returns the key for an outbound request.
func KeyForRequest(req *http.Request) RequestKey {
	if req == nil {
		return RequestKey{Method: http.MethodGet}
	}
	return NewRequestKey(req.Method, req.URL)
}

// String generates the deterministic key string.
// Format: METHOD URL
//
// Example:
//
//	GET https://app.example.com/assets/app.js?v=3
func (k RequestKey) String() string {
	return k.Method + " " + k.URL
}
