//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/Sternrassler/pickup-client/internal/testutil"
	"github.com/Sternrassler/pickup-client/pkg/cache"
	"github.com/Sternrassler/pickup-client/pkg/controller"
)

func newController(t *testing.T, store *cache.Store, origin *testutil.MockOrigin, version string) *controller.Controller {
	t.Helper()

	u, err := url.Parse(origin.URL())
	if err != nil {
		t.Fatalf("parse origin: %v", err)
	}
	cfg := controller.DefaultConfig(u, version)
	cfg.Transport = origin.Transport()

	ctrl, err := controller.New(store, cfg)
	if err != nil {
		t.Fatalf("controller.New() error = %v", err)
	}
	t.Cleanup(ctrl.Wait)
	return ctrl
}

func fetch(t *testing.T, ctrl *controller.Controller, origin *testutil.MockOrigin, path string, navigate bool) (int, string, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, origin.URL()+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if navigate {
		req.Header.Set("Sec-Fetch-Mode", "navigate")
	}
	resp, err := ctrl.Fetch(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), nil
}

// TestOfflineLifecycle runs install, activation, offline serving and a
// version upgrade against a real Redis.
func TestOfflineLifecycle(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	origin := testutil.NewMockOrigin()
	defer origin.Close()

	ctx := context.Background()
	store := cache.NewStore(redisClient, "it")

	v1 := newController(t, store, origin, "one-more-bite-v1")
	if _, err := v1.Install(ctx); err != nil {
		t.Fatalf("Install v1: %v", err)
	}
	if _, err := v1.Activate(ctx); err != nil {
		t.Fatalf("Activate v1: %v", err)
	}

	origin.SetResponse("/assets/app.js", testutil.NewStaticResponse("application/javascript", "console.log(1)"))
	if status, _, err := fetch(t, v1, origin, "/assets/app.js", false); err != nil || status != http.StatusOK {
		t.Fatalf("warm app.js: status=%d err=%v", status, err)
	}
	v1.Wait()

	t.Log("Origin goes offline")
	origin.SetOffline(true)

	status, body, err := fetch(t, v1, origin, "/assets/app.js", false)
	if err != nil || status != http.StatusOK || body != "console.log(1)" {
		t.Errorf("offline app.js: status=%d body=%q err=%v", status, body, err)
	}

	status, body, err = fetch(t, v1, origin, "/menu/42", true)
	if err != nil || body != testutil.ShellBody {
		t.Errorf("offline navigation: status=%d body=%q err=%v", status, body, err)
	}

	t.Log("Deploy v2")
	origin.SetOffline(false)
	v2 := newController(t, store, origin, "one-more-bite-v2")
	if _, err := v2.Install(ctx); err != nil {
		t.Fatalf("Install v2: %v", err)
	}
	deleted, err := v2.Activate(ctx)
	if err != nil {
		t.Fatalf("Activate v2: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "one-more-bite-v1" {
		t.Errorf("deleted = %v, want [one-more-bite-v1]", deleted)
	}

	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 1 || names[0] != "one-more-bite-v2" {
		t.Errorf("names = %v, want [one-more-bite-v2]", names)
	}
}
