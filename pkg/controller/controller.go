// Package controller implements the request-cache controller: it classifies
// outgoing requests and serves them with a per-class caching strategy from a
// versioned cache.Store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/pickup-client/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultShellAssets are precached during Install.
var DefaultShellAssets = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/assets/icon-192.png",
	"/assets/icon-512.png",
}

// Config holds the controller configuration.
type Config struct {
	// Origin is the application origin the shell assets are loaded from (REQUIRED)
	Origin *url.URL

	// Version names the current cache, e.g. "one-more-bite-v3" (REQUIRED)
	Version string

	// ShellAssets are fetched into the current cache during Install
	ShellAssets []string

	// ShellDocument is served for navigations when the network fails
	ShellDocument string

	// Rules select the API surface that is never cached
	Rules Rules

	// Transport performs network fetches (default: http.DefaultTransport)
	Transport http.RoundTripper

	// RevalidateTimeout bounds background refreshes
	RevalidateTimeout time.Duration

	// PrecacheConcurrency limits parallel shell fetches during Install
	PrecacheConcurrency int
}

// DefaultConfig returns a configuration with the default shell and rules.
func DefaultConfig(origin *url.URL, version string) Config {
	return Config{
		Origin:              origin,
		Version:             version,
		ShellAssets:         append([]string(nil), DefaultShellAssets...),
		ShellDocument:       "/index.html",
		Rules:               DefaultRules(),
		Transport:           http.DefaultTransport,
		RevalidateTimeout:   30 * time.Second,
		PrecacheConcurrency: 4,
	}
}

// Controller serves outgoing requests from the network and a versioned cache.
// It only intercepts after Activate; until then every request goes to the network.
type Controller struct {
	store     *cache.Store
	config    Config
	transport http.RoundTripper
	logger    zerolog.Logger

	active atomic.Bool

	// background revalidations
	wg sync.WaitGroup
}

// New creates a new controller.
func New(store *cache.Store, cfg Config) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Origin == nil || cfg.Origin.Host == "" {
		return nil, fmt.Errorf("origin is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("cache version is required")
	}
	if cfg.ShellDocument == "" {
		cfg.ShellDocument = "/index.html"
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = 30 * time.Second
	}
	if cfg.PrecacheConcurrency <= 0 {
		cfg.PrecacheConcurrency = 4
	}

	return &Controller{
		store:     store,
		config:    cfg,
		transport: cfg.Transport,
		logger:    log.With().Str("component", "controller").Str("cache", cfg.Version).Logger(),
	}, nil
}

// Version returns the current cache name.
func (c *Controller) Version() string {
	return c.config.Version
}

// Active reports whether the controller has claimed request handling.
func (c *Controller) Active() bool {
	return c.active.Load()
}

// Classify returns the route class of req under the configured rules.
func (c *Controller) Classify(req *http.Request) RouteClass {
	return c.config.Rules.Classify(NewRouteRequest(req))
}

// RoundTrip implements http.RoundTripper so the controller can back an http.Client.
func (c *Controller) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Fetch(req)
}

// Fetch serves an outgoing request according to its route class.
func (c *Controller) Fetch(req *http.Request) (*http.Response, error) {
	class := c.Classify(req)
	routeRequestsTotal.WithLabelValues(string(class)).Inc()

	if !c.Active() || !class.Intercepted() {
		resp, err := c.transport.RoundTrip(req)
		if err != nil {
			networkErrorsTotal.WithLabelValues(string(class)).Inc()
			return nil, err
		}
		routeResponsesTotal.WithLabelValues(string(class), "network").Inc()
		return resp, nil
	}

	if class == RouteNavigation {
		return c.networkFirst(req)
	}
	return c.staleWhileRevalidate(req)
}

// networkFirst tries the network, then the cached shell document.
func (c *Controller) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := cache.KeyForRequest(req)

	resp, err := c.fetchAndStore(ctx, req, key)
	if err == nil {
		routeResponsesTotal.WithLabelValues(string(RouteNavigation), "network").Inc()
		return resp, nil
	}
	networkErrorsTotal.WithLabelValues(string(RouteNavigation)).Inc()

	shellKey := c.shellKey()
	entry, matchErr := c.store.Match(ctx, c.config.Version, shellKey)
	if matchErr != nil {
		routeResponsesTotal.WithLabelValues(string(RouteNavigation), "unavailable").Inc()
		c.logger.Warn().
			Err(err).
			Str("url", req.URL.String()).
			Msg("Navigation failed and shell is not cached")
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, req.URL, err)
	}

	c.logger.Debug().
		Str("url", req.URL.String()).
		Err(err).
		Msg("Serving cached shell for navigation")
	routeResponsesTotal.WithLabelValues(string(RouteNavigation), "shell").Inc()
	return cache.EntryToResponse(entry, req), nil
}

type fetchResult struct {
	resp *http.Response
	err  error
}

// staleWhileRevalidate answers from cache when possible while always
// refreshing the entry from the network in the background.
func (c *Controller) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := cache.KeyForRequest(req)

	cached, err := c.store.Match(ctx, c.config.Version, key)
	if err != nil {
		cached = nil
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup failed")
		}
	}

	// The refresh must outlive the caller when the cached copy is returned.
	results := make(chan fetchResult, 1)
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.RevalidateTimeout)
	bgReq := req.Clone(bgCtx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		resp, err := c.fetchAndStore(bgCtx, bgReq, key)
		if err != nil {
			networkErrorsTotal.WithLabelValues(string(RouteStatic)).Inc()
			c.logger.Debug().Err(err).Str("key", key.String()).Msg("Revalidation failed")
		}
		results <- fetchResult{resp: resp, err: err}
	}()

	if cached != nil {
		routeResponsesTotal.WithLabelValues(string(RouteStatic), "cache").Inc()
		return cache.EntryToResponse(cached, req), nil
	}

	select {
	case r := <-results:
		if r.err != nil {
			routeResponsesTotal.WithLabelValues(string(RouteStatic), "unavailable").Inc()
			return nil, fmt.Errorf("%w: %s: %v", ErrResourceUnavailable, key, r.err)
		}
		routeResponsesTotal.WithLabelValues(string(RouteStatic), "network").Inc()
		return r.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchAndStore performs a network fetch and writes storable responses to
// the current cache. The returned response has a fully buffered body.
func (c *Controller) fetchAndStore(ctx context.Context, req *http.Request, key cache.RequestKey) (*http.Response, error) {
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, err
	}

	switch {
	case !cache.IsCacheableStatus(resp.StatusCode):
		cacheSkipsTotal.WithLabelValues("status").Inc()
		return resp, nil
	case c.isOpaque(req, resp):
		cacheSkipsTotal.WithLabelValues("opaque").Inc()
		return resp, nil
	}

	if err := c.store.Put(ctx, c.config.Version, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
	return resp, nil
}

// isOpaque reports whether resp is a cross-origin response without CORS headers.
func (c *Controller) isOpaque(req *http.Request, resp *http.Response) bool {
	if sameOrigin(req.URL, c.config.Origin) {
		return false
	}
	return resp.Header.Get("Access-Control-Allow-Origin") == ""
}

func (c *Controller) shellKey() cache.RequestKey {
	return cache.NewRequestKey(http.MethodGet, c.resolve(c.config.ShellDocument))
}

// resolve turns an asset path into an absolute URL on the origin.
func (c *Controller) resolve(asset string) *url.URL {
	ref, err := url.Parse(asset)
	if err != nil {
		ref = &url.URL{Path: path.Clean("/" + asset)}
	}
	return c.config.Origin.ResolveReference(ref)
}

// Wait blocks until all background revalidations have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Host == "" {
		return true
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
