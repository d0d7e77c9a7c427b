package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-process miniredis and returns a client for it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return mr, client
}

func testKey(path string) RequestKey {
	return NewRequestKey(http.MethodGet, &url.URL{Scheme: "https", Host: "app.example.com", Path: path})
}

func TestNewStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	store := NewStore(client, "")
	if store == nil {
		t.Fatal("NewStore returned nil")
	}
	if store.redis != client {
		t.Error("Store redis client not set correctly")
	}
	if store.namespace != DefaultNamespace {
		t.Errorf("namespace = %q, want %q", store.namespace, DefaultNamespace)
	}
}

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil redis client")
		}
	}()
	NewStore(nil, "test")
}

func TestStore_PutAndMatch(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()

	key := testKey("/css/styles.css")
	entry := &CacheEntry{
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/css"}},
		Body:       []byte("body{}"),
	}

	if err := store.Put(ctx, "v2", key, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Match(ctx, "v2", key)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if string(got.Body) != "body{}" {
		t.Errorf("Body mismatch: got %s", got.Body)
	}
	if got.Version != "v2" {
		t.Errorf("Version = %q, want v2", got.Version)
	}
	if got.Key != key.String() {
		t.Errorf("Key = %q, want %q", got.Key, key.String())
	}
	if got.Headers.Get("Content-Type") != "text/css" {
		t.Errorf("Content-Type = %q", got.Headers.Get("Content-Type"))
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt not set")
	}
}

func TestStore_Put_ReplacesEntry(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()
	key := testKey("/assets/app.js")

	for _, body := range []string{"one", "two"} {
		if err := store.Put(ctx, "v1", key, &CacheEntry{StatusCode: 200, Body: []byte(body)}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	n, err := store.Len(ctx, "v1")
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Len = %d, want 1 entry per key", n)
	}

	got, _ := store.Match(ctx, "v1", key)
	if string(got.Body) != "two" {
		t.Errorf("Body = %q, want latest write", got.Body)
	}
}

func TestStore_Match_CacheMiss(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")

	_, err := store.Match(context.Background(), "v1", testKey("/missing"))
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestStore_Match_VersionIsolation(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()
	key := testKey("/index.html")

	if err := store.Put(ctx, "v1", key, &CacheEntry{StatusCode: 200, Body: []byte("old")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := store.Match(ctx, "v2", key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Match in other version = %v, want ErrCacheMiss", err)
	}
}

func TestStore_Match_InvalidEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, "test")
	key := testKey("/broken")

	mr.HSet("test:cache:v1", key.String(), "{not json")

	_, err := store.Match(context.Background(), "v1", key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()
	key := testKey("/manifest.json")

	if err := store.Put(ctx, "v1", key, &CacheEntry{StatusCode: 200}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := store.Delete(ctx, "v1", key)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Error("Delete reported nothing removed")
	}

	if _, err := store.Match(ctx, "v1", key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}

	removed, err = store.Delete(ctx, "v1", key)
	if err != nil || removed {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestStore_OpenNamesDeleteCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()

	if err := store.Open(ctx, "v1"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Put(ctx, "v2-current", testKey("/"), &CacheEntry{StatusCode: 200}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if len(names) != 2 || names[0] != "v1" || names[1] != "v2-current" {
		t.Fatalf("Names = %v, want [v1 v2-current]", names)
	}

	existed, err := store.DeleteCache(ctx, "v2-current")
	if err != nil {
		t.Fatalf("DeleteCache failed: %v", err)
	}
	if !existed {
		t.Error("DeleteCache reported missing cache")
	}
	if mr.Exists("test:cache:v2-current") {
		t.Error("cache hash still present after DeleteCache")
	}

	names, _ = store.Names(ctx)
	if len(names) != 1 || names[0] != "v1" {
		t.Errorf("Names after delete = %v, want [v1]", names)
	}
}

func TestStore_InvalidName(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, "test")
	ctx := context.Background()

	if err := store.Open(ctx, ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Open(\"\") = %v, want ErrInvalidName", err)
	}
	if err := store.Put(ctx, "", testKey("/"), &CacheEntry{}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Put(\"\") = %v, want ErrInvalidName", err)
	}
	if err := store.Put(ctx, "v1", testKey("/"), nil); err == nil {
		t.Error("Put with nil entry should return error")
	}
}

func TestStore_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, "test")
	mr.Close()

	if err := store.Open(context.Background(), "v1"); err == nil {
		t.Error("Open should fail when redis is down")
	}
	if _, err := store.Match(context.Background(), "v1", testKey("/")); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("Match with redis down = %v, want transport error", err)
	}
}
