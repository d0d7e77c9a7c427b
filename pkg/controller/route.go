package controller

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// RouteClass is the bucket a request is sorted into for cache policy purposes.
type RouteClass string

const (
	// RouteBypass covers non-read methods. Passed to the network untouched.
	RouteBypass RouteClass = "bypass"

	// RouteAPI covers the remote-data, auth and realtime surface. Network only.
	RouteAPI RouteClass = "api"

	// RouteNavigation covers top-level page loads. Network first, shell fallback.
	RouteNavigation RouteClass = "navigation"

	// RouteStatic covers everything else. Stale-while-revalidate.
	RouteStatic RouteClass = "static"
)

// Intercepted reports whether the controller applies a caching strategy to the class.
func (c RouteClass) Intercepted() bool {
	return c == RouteNavigation || c == RouteStatic
}

// RouteRequest holds the inputs consumed by classification.
type RouteRequest struct {
	Method   string
	URL      *url.URL
	Navigate bool
}

// NewRouteRequest extracts classification inputs from an outbound request.
func NewRouteRequest(req *http.Request) RouteRequest {
	return RouteRequest{
		Method:   req.Method,
		URL:      req.URL,
		Navigate: IsNavigation(req),
	}
}

// IsNavigation reports whether req is a top-level page load.
// Sec-Fetch-Mode wins when present; otherwise a GET that prefers HTML counts.
func IsNavigation(req *http.Request) bool {
	if req == nil {
		return false
	}
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return strings.EqualFold(mode, "navigate")
	}
	if req.Method != http.MethodGet && req.Method != "" {
		return false
	}
	for _, part := range strings.Split(req.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		// The first parsable type is the client's preference.
		return mediaType == "text/html"
	}
	return false
}

// Rules configure which requests belong to the API surface.
type Rules struct {
	// BypassHosts are hostname fragments of remote API hosts (e.g. "supabase")
	BypassHosts []string

	// BypassPaths are path fragments of the API surface (e.g. "/rest/v1/")
	BypassPaths []string
}

// DefaultRules returns the API surface of the hosted backend.
func DefaultRules() Rules {
	return Rules{
		BypassHosts: []string{"supabase"},
		BypassPaths: []string{"/rest/v1/", "/auth/v1/", "realtime"},
	}
}

// Classify sorts a request into exactly one route class.
// Precedence: bypass, api, navigation, static.
func (r Rules) Classify(req RouteRequest) RouteClass {
	if req.Method != "" && req.Method != http.MethodGet {
		return RouteBypass
	}

	if req.URL != nil {
		host := strings.ToLower(req.URL.Hostname())
		for _, fragment := range r.BypassHosts {
			if fragment != "" && strings.Contains(host, strings.ToLower(fragment)) {
				return RouteAPI
			}
		}
		for _, fragment := range r.BypassPaths {
			if fragment != "" && strings.Contains(req.URL.Path, fragment) {
				return RouteAPI
			}
		}
	}

	if req.Navigate {
		return RouteNavigation
	}
	return RouteStatic
}
