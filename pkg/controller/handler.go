package controller

import (
	"errors"
	"io"
	"net/http"
	"net/url"
)

// Hop-by-hop headers are not forwarded by the proxy.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler returns an http.Handler that forwards requests to the origin
// through the controller.
func (c *Controller) Handler() http.Handler {
	return http.HandlerFunc(c.serveHTTP)
}

func (c *Controller) serveHTTP(w http.ResponseWriter, r *http.Request) {
	target := c.config.Origin.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	out.ContentLength = r.ContentLength
	out.Header = r.Header.Clone()
	removeHopHeaders(out.Header)
	// Cache keys do not vary by encoding; the transport negotiates and
	// decodes compression itself so cached bodies are always identity.
	out.Header.Del("Accept-Encoding")

	resp, err := c.Fetch(out)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrResourceUnavailable) {
			status = http.StatusGatewayTimeout
		}
		c.logger.Debug().Err(err).Str("path", r.URL.Path).Int("status_code", status).Msg("Proxy request failed")
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	removeHopHeaders(header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func removeHopHeaders(h http.Header) {
	for _, key := range hopHeaders {
		h.Del(key)
	}
}
