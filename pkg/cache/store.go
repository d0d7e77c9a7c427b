package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in the named cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidName indicates an empty cache name
	ErrInvalidName = errors.New("invalid cache name")
)

// DefaultNamespace prefixes every Redis key written by the store.
const DefaultNamespace = "pickup"

// Store is a set of named, versioned response caches backed by Redis.
//
// Redis layout:
//
//	<ns>:caches        SET of cache names
//	<ns>:cache:<name>  HASH of RequestKey.String() -> JSON CacheEntry
type Store struct {
	redis     *redis.Client
	namespace string
}

// NewStore creates a new cache store with Redis backend.
func NewStore(redisClient *redis.Client, namespace string) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{
		redis:     redisClient,
		namespace: namespace,
	}
}

func (s *Store) namesKey() string {
	return s.namespace + ":caches"
}

func (s *Store) cacheKey(name string) string {
	return s.namespace + ":cache:" + name
}

// Open registers the named cache, creating it if absent.
func (s *Store) Open(ctx context.Context, name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if err := s.redis.SAdd(ctx, s.namesKey(), name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Match looks up a key in the named cache.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *Store) Match(ctx context.Context, name string, key RequestKey) (*CacheEntry, error) {
	data, err := s.redis.HGet(ctx, s.cacheKey(name), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(name).Inc()
	return &entry, nil
}

// Put stores an entry in the named cache, replacing any previous entry for
// the same key. The cache is registered as a side effect.
func (s *Store) Put(ctx context.Context, name string, key RequestKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if name == "" {
		return ErrInvalidName
	}

	stored := *entry
	stored.Key = key.String()
	stored.Version = name
	if stored.CachedAt.IsZero() {
		stored.CachedAt = time.Now()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.namesKey(), name)
		pipe.HSet(ctx, s.cacheKey(name), stored.Key, data)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put: %w", err)
	}

	CacheWrites.WithLabelValues(name).Inc()
	CacheSize.WithLabelValues(name).Add(float64(len(data)))
	return nil
}

// Delete removes one key from the named cache.
// Reports whether an entry was removed.
func (s *Store) Delete(ctx context.Context, name string, key RequestKey) (bool, error) {
	n, err := s.redis.HDel(ctx, s.cacheKey(name), key.String()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

// Names lists all registered cache names in sorted order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteCache drops a whole named cache with all its entries.
// Reports whether the cache existed.
func (s *Store) DeleteCache(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, s.namesKey(), name)
		pipe.Del(ctx, s.cacheKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete_cache").Inc()
		return false, fmt.Errorf("redis delete cache: %w", err)
	}

	CacheSize.DeleteLabelValues(name)
	return removed.Val() > 0, nil
}

// Len returns the number of entries in the named cache.
func (s *Store) Len(ctx context.Context, name string) (int64, error) {
	n, err := s.redis.HLen(ctx, s.cacheKey(name)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return n, nil
}
