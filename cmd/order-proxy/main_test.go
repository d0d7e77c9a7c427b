package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/pickup-client/internal/testutil"
	"github.com/Sternrassler/pickup-client/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func testConfig(t *testing.T) (config.Config, *testutil.MockOrigin, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	cfg := config.NewTestConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.OriginURL = origin.URL()
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg, origin, mr
}

func TestSetup_InstallsAndActivates(t *testing.T) {
	cfg, origin, mr := testConfig(t)
	mr.SAdd("test:caches", "stale-v0")

	a, err := setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("setup() error = %v", err)
	}
	defer a.Close()

	if !a.ctrl.Active() {
		t.Error("controller should be active after setup")
	}
	if stale, _ := mr.SIsMember("test:caches", "stale-v0"); stale {
		t.Error("stale cache version should be deleted on activation")
	}
	for _, asset := range cfg.Cache.ShellAssets {
		if origin.RequestCount(asset) == 0 {
			t.Errorf("asset %s was not precached", asset)
		}
	}

	router := a.server.Router()
	for _, path := range []string{"/health", "/ready", "/index.html"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestSetup_RedisUnavailable(t *testing.T) {
	cfg, _, mr := testConfig(t)
	mr.Close()

	if _, err := setup(context.Background(), cfg); err == nil {
		t.Fatal("expected setup to fail without redis")
	}
}

func TestSetup_InvalidRedisURL(t *testing.T) {
	cfg, _, _ := testConfig(t)
	cfg.Redis.URL = "mysql://nope"

	if _, err := setup(context.Background(), cfg); err == nil {
		t.Fatal("expected setup to fail on a bad redis url")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg, _, _ := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
