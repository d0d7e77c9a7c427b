package cache

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type failingBody struct {
	closed bool
}

func (b *failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (b *failingBody) Close() error               { b.closed = true; return nil }

func TestResponseToEntry_ReadErrorClosesBody(t *testing.T) {
	body := &failingBody{}
	resp := &http.Response{StatusCode: 200, Header: http.Header{}, Body: body}

	if _, err := ResponseToEntry(resp); err == nil {
		t.Fatal("expected read error")
	}
	if !body.closed {
		t.Error("body was not closed after a read error")
	}
}

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		wantErr bool
	}{
		{
			name: "valid response with headers",
			resp: &http.Response{
				StatusCode: 200,
				Header: http.Header{
					"Content-Type":  []string{"text/css"},
					"Cache-Control": []string{"max-age=60"},
				},
				Body: io.NopCloser(bytes.NewReader([]byte("body{}"))),
			},
			wantErr: false,
		},
		{
			name: "response without body",
			resp: &http.Response{
				StatusCode: 204,
				Header:     http.Header{},
			},
			wantErr: false,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var original []byte
			if tt.resp != nil && tt.resp.Body != nil {
				original = []byte("body{}")
			}

			entry, err := ResponseToEntry(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if entry.StatusCode != tt.resp.StatusCode {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.resp.StatusCode)
			}
			if !bytes.Equal(entry.Body, original) {
				t.Errorf("Body = %q, want %q", entry.Body, original)
			}

			// Verify body was restored for the caller
			body, _ := io.ReadAll(tt.resp.Body)
			if !bytes.Equal(body, original) {
				t.Errorf("restored body = %q, want %q", body, original)
			}

			if entry.CachedAt.IsZero() {
				t.Error("CachedAt was not set")
			}
		})
	}
}

func TestEntryToResponse(t *testing.T) {
	entry := &CacheEntry{
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte("<html></html>"),
	}
	req := httptest.NewRequest(http.MethodGet, "https://app.example.com/", nil)

	for i := 0; i < 2; i++ {
		resp := EntryToResponse(entry, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
		}
		if resp.Header.Get("Content-Type") != "text/html" {
			t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
		}
		if resp.Request != req {
			t.Error("Request not attached to response")
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "<html></html>" {
			t.Errorf("body #%d = %q", i, body)
		}
	}

	if EntryToResponse(nil, req) != nil {
		t.Error("EntryToResponse(nil) should return nil")
	}
}

func TestEntryToResponse_DefaultStatus(t *testing.T) {
	resp := EntryToResponse(&CacheEntry{Body: []byte("x")}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.ContentLength != 1 {
		t.Errorf("ContentLength = %d, want 1", resp.ContentLength)
	}
}

func TestIsCacheableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, true},
		{204, false},
		{206, false},
		{301, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		if got := IsCacheableStatus(tt.code); got != tt.want {
			t.Errorf("IsCacheableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
