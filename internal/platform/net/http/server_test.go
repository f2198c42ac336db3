package http

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"regtruth/internal/platform/config"
)

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func TestRouterMountsAndRoutes(t *testing.T) {
	srv := NewServer(config.New().Prefix("TEST_OPS_"))
	r := srv.Router()

	GetJSON(r, "/ping", func(*stdhttp.Request) (any, error) { return "pong", nil })
	r.Route("/v1", func(sub Router) {
		GetJSON(sub, "/items/{id}", func(req *stdhttp.Request) (any, error) {
			return URLParam(req, "id"), nil
		})
	})

	ts := httptest.NewServer(r.Mux())
	defer ts.Close()

	resp, err := stdhttp.Get(ts.URL + "/ping")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("/ping = %d", resp.StatusCode)
	}

	resp, err = stdhttp.Get(ts.URL + "/v1/items/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "abc") {
		t.Fatalf("url param not routed: %s", body)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Setenv("TEST_OPS_ADDR", "127.0.0.1:0")
	srv := NewServer(config.New().Prefix("TEST_OPS_"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
