package controller

import (
	"net/http"
	"net/url"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestRules_Classify(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		method   string
		url      string
		navigate bool
		want     RouteClass
	}{
		{"post is bypass", http.MethodPost, "https://app.example.com/index.html", false, RouteBypass},
		{"delete is bypass", http.MethodDelete, "https://app.example.com/cart", true, RouteBypass},
		{"supabase host", http.MethodGet, "https://abc.supabase.co/storage/img.png", false, RouteAPI},
		{"rest path", http.MethodGet, "https://api.example.com/rest/v1/food_items", false, RouteAPI},
		{"auth path", http.MethodGet, "https://app.example.com/auth/v1/user", false, RouteAPI},
		{"realtime path", http.MethodGet, "https://app.example.com/realtime/websocket", true, RouteAPI},
		{"navigation", http.MethodGet, "https://app.example.com/orders", true, RouteNavigation},
		{"static", http.MethodGet, "https://app.example.com/assets/app.js", false, RouteStatic},
		{"empty method is get", "", "https://app.example.com/assets/app.css", false, RouteStatic},
		{"host match is case insensitive", http.MethodGet, "https://ABC.SUPABASE.CO/x", false, RouteAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Classify(RouteRequest{
				Method:   tt.method,
				URL:      mustURL(t, tt.url),
				Navigate: tt.navigate,
			})
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRules_Classify_EmptyRules(t *testing.T) {
	var rules Rules
	got := rules.Classify(RouteRequest{
		Method: http.MethodGet,
		URL:    mustURL(t, "https://abc.supabase.co/rest/v1/orders"),
	})
	if got != RouteStatic {
		t.Errorf("Classify() = %s, want %s", got, RouteStatic)
	}
}

func TestIsNavigation(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		headers map[string]string
		want    bool
	}{
		{"sec-fetch-mode navigate", http.MethodGet, map[string]string{"Sec-Fetch-Mode": "navigate"}, true},
		{"sec-fetch-mode cors wins over accept", http.MethodGet, map[string]string{"Sec-Fetch-Mode": "cors", "Accept": "text/html"}, false},
		{"html accept", http.MethodGet, map[string]string{"Accept": "text/html,application/xhtml+xml,*/*;q=0.8"}, true},
		{"json accept", http.MethodGet, map[string]string{"Accept": "application/json"}, false},
		{"no headers", http.MethodGet, nil, false},
		{"html accept on post", http.MethodPost, map[string]string{"Accept": "text/html"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, "https://app.example.com/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := IsNavigation(req); got != tt.want {
				t.Errorf("IsNavigation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteClass_Intercepted(t *testing.T) {
	for class, want := range map[RouteClass]bool{
		RouteBypass:     false,
		RouteAPI:        false,
		RouteNavigation: true,
		RouteStatic:     true,
	} {
		if got := class.Intercepted(); got != want {
			t.Errorf("%s.Intercepted() = %v, want %v", class, got, want)
		}
	}
}
