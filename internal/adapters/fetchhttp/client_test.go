package fetchhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "regtruth/internal/platform/errors"
)

func newTestClient(o Options) *Client {
	c := NewClient(o)
	c.sleep = func(time.Duration) {} // no real waiting in tests
	return c
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "regtruth") {
			t.Errorf("user agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("<html>zakon</html>"))
	}))
	defer srv.Close()

	res, err := newTestClient(Options{}).Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Status != 200 || string(res.Body) != "<html>zakon</html>" {
		t.Fatalf("res = %+v", res)
	}
	if res.ETag != `"v1"` || res.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("headers not captured: %+v", res)
	}
}

func TestFetch_NotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("missing conditional header")
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	res, err := newTestClient(Options{}).Fetch(context.Background(), srv.URL, `"v1"`)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.NotModified || res.ETag != `"v1"` || len(res.Body) != 0 {
		t.Fatalf("res = %+v", res)
	}
}

func TestFetch_RetriesTransientThenSucceeds(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	res, err := newTestClient(Options{MaxRetries: 2}).Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits != 2 || string(res.Body) != "ok" {
		t.Fatalf("hits = %d, body = %q", hits, res.Body)
	}
}

func TestFetch_RetryBudgetExhausted(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(Options{MaxRetries: 2}).Fetch(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !perr.Retryable(err) {
		t.Fatalf("502 exhaustion should stay retryable for the scheduler: %v", err)
	}
	if hits != 3 {
		t.Fatalf("hits = %d, want 3 (initial + 2 retries)", hits)
	}
}

func TestFetch_PermanentClientErrorNoRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(Options{MaxRetries: 5}).Fetch(context.Background(), srv.URL, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if perr.Retryable(err) {
		t.Fatalf("404 must be permanent: %v", err)
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	res, err := newTestClient(Options{MaxBodyBytes: 1024}).Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(res.Body) != 1024 {
		t.Fatalf("body = %d bytes, want capped at 1024", len(res.Body))
	}
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(Options{}).Fetch(ctx, srv.URL, ""); err == nil {
		t.Fatal("expected context error")
	}
}
