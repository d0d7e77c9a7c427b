package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a stored response snapshot belonging to one cache version.
type CacheEntry struct {
	// Key is the normalized request identity the entry was stored under
	Key string `json:"key"`

	// Version is the name of the cache the entry belongs to
	Version string `json:"version"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers
	Headers http.Header `json:"headers"`

	// Body is the response body
	Body []byte `json:"body"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age() time.Duration {
	if e.CachedAt.IsZero() {
		return 0
	}
	return time.Since(e.CachedAt)
}
