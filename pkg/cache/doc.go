// Package cache provides versioned, named response caches with a Redis backend.
//
// A Store holds any number of named caches. Each name is a version tag of the
// application shell (for example "one-more-bite-v3"); the controller writes
// only to the current version and deletes the others on activation.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache store
//	store := cache.NewStore(redisClient, "pickup")
//
//	// Open the current version
//	if err := store.Open(ctx, "one-more-bite-v3"); err != nil {
//		return err
//	}
//
//	// Look up a request
//	key := cache.KeyForRequest(req)
//	entry, err := store.Match(ctx, "one-more-bite-v3", key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from network
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry (body is restored for the caller)
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in the current version
//	if err := store.Put(ctx, "one-more-bite-v3", key, entry); err != nil {
//		return err
//	}
//
//	// Replay a cached response
//	resp := cache.EntryToResponse(entry, req)
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - pickup_cache_hits_total{cache} - Cache hits
//   - pickup_cache_misses_total - Cache misses
//   - pickup_cache_writes_total{cache} - Entries written
//   - pickup_cache_size_bytes{cache} - Bytes written per cache
//   - pickup_cache_errors_total{operation} - Cache operation errors
package cache
