package api

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"regtruth/internal/core/statusgate"
	"regtruth/internal/platform/config"
	perr "regtruth/internal/platform/errors"
	phttp "regtruth/internal/platform/net/http"

	confdom "regtruth/internal/services/conflicts/domain"
	discdom "regtruth/internal/services/discovery/domain"
	rulesdom "regtruth/internal/services/rules/domain"

	"github.com/go-chi/chi/v5"
)

type fakeHealth struct{ err error }

func (f *fakeHealth) Guard(context.Context) error { return f.err }

type fakeEndpoints struct {
	eps      []discdom.Endpoint
	lastReg  discdom.Endpoint
	resetIDs []string
}

func (f *fakeEndpoints) ListEndpoints(context.Context) ([]discdom.Endpoint, error) {
	return f.eps, nil
}

func (f *fakeEndpoints) RegisterEndpoint(_ context.Context, ep discdom.Endpoint) (discdom.Endpoint, error) {
	f.lastReg = ep
	ep.ID = "ep-1"
	ep.Active = true
	return ep, nil
}

func (f *fakeEndpoints) ResetEndpoint(_ context.Context, id string) error {
	f.resetIDs = append(f.resetIDs, id)
	return nil
}

type fakeConflicts struct {
	byID   map[string]confdom.Conflict
	listed confdom.Status
}

func (f *fakeConflicts) Get(_ context.Context, id string) (confdom.Conflict, error) {
	c, ok := f.byID[id]
	if !ok {
		return confdom.Conflict{}, perr.NotFoundf("conflict %s not found", id)
	}
	return c, nil
}

func (f *fakeConflicts) ListByStatus(_ context.Context, st confdom.Status, _ int) ([]confdom.Conflict, error) {
	f.listed = st
	var out []confdom.Conflict
	for _, c := range f.byID {
		if c.Status == st {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRules struct {
	lastReq statusgate.Request
	lastID  string
}

func (f *fakeRules) Get(_ context.Context, id string) (rulesdom.Rule, error) {
	return rulesdom.Rule{ID: id, ConceptSlug: "vat-standard-rate"}, nil
}

func (f *fakeRules) ListByConcept(_ context.Context, slug string, _ []statusgate.Status) ([]rulesdom.Rule, error) {
	return []rulesdom.Rule{{ID: "r-1", ConceptSlug: slug}}, nil
}

func (f *fakeRules) Transition(_ context.Context, id string, req statusgate.Request, _ string) (rulesdom.Rule, error) {
	f.lastID = id
	f.lastReq = req
	return rulesdom.Rule{ID: id, Status: req.To}, nil
}

type harness struct {
	ts        *httptest.Server
	health    *fakeHealth
	endpoints *fakeEndpoints
	conflicts *fakeConflicts
	rules     *fakeRules
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{
		health:    &fakeHealth{},
		endpoints: &fakeEndpoints{},
		conflicts: &fakeConflicts{byID: map[string]confdom.Conflict{}},
		rules:     &fakeRules{},
	}
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), Options{
		Config:        config.New().Prefix("TEST_API_"),
		Health:        h.health,
		Endpoints:     h.endpoints,
		Conflicts:     h.conflicts,
		Rules:         h.rules,
		OperatorToken: token,
	})
	h.ts = httptest.NewServer(mux)
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body, token string) (*stdhttp.Response, phttp.Envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := stdhttp.NewRequest(method, h.ts.URL+"/api/v1"+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := stdhttp.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var env phttp.Envelope
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, "")
	resp, _ := h.do(t, "GET", "/healthz", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}

	h.health.err = perr.Unavailablef("pg down")
	resp, env := h.do(t, "GET", "/healthz", "", "")
	if resp.StatusCode != stdhttp.StatusServiceUnavailable {
		t.Fatalf("unhealthy store should 503, got %d", resp.StatusCode)
	}
	if env.Code != perr.ErrorCodeUnavailable {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t, "")
	resp, env := h.do(t, "GET", "/version", "", "")
	if resp.StatusCode != stdhttp.StatusOK || env.Data == nil {
		t.Fatalf("version = %d %+v", resp.StatusCode, env)
	}
}

func TestListEndpoints(t *testing.T) {
	h := newHarness(t, "")
	h.endpoints.eps = []discdom.Endpoint{{
		ID:          "ep-9",
		Domain:      "tax.example",
		BaseURL:     "https://tax.example/sitemap.xml",
		Strategy:    discdom.StrategySitemap,
		ScrapeEvery: 24 * time.Hour,
		Active:      true,
	}}
	resp, env := h.do(t, "GET", "/endpoints", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	views, ok := env.Data.([]any)
	if !ok || len(views) != 1 {
		t.Fatalf("data = %#v", env.Data)
	}
	view := views[0].(map[string]any)
	if view["scrape_every"] != "24h0m0s" || view["domain"] != "tax.example" {
		t.Fatalf("view = %#v", view)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	h := newHarness(t, "")
	body := `{"domain":"tax.example","base_url":"https://tax.example/laws","strategy":"CRAWL","priority":5,"scrape_every":"12h"}`
	resp, _ := h.do(t, "POST", "/endpoints", body, "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if h.endpoints.lastReg.Strategy != discdom.StrategyCrawl ||
		h.endpoints.lastReg.ScrapeEvery != 12*time.Hour {
		t.Fatalf("registered = %+v", h.endpoints.lastReg)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	h := newHarness(t, "")
	resp, env := h.do(t, "POST", "/endpoints",
		`{"domain":"tax.example","base_url":"not a url","strategy":"CRAWL"}`, "")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("bad url should 400, got %d", resp.StatusCode)
	}
	if env.Code != perr.ErrorCodeValidation {
		t.Fatalf("envelope = %+v", env)
	}

	resp, _ = h.do(t, "POST", "/endpoints",
		`{"domain":"tax.example","base_url":"https://tax.example","strategy":"CRAWL","scrape_every":"-3h"}`, "")
	if resp.StatusCode != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("negative interval should 422, got %d", resp.StatusCode)
	}
}

func TestOperatorTokenGuardsMutations(t *testing.T) {
	h := newHarness(t, "hunter2")

	// reads stay open
	resp, _ := h.do(t, "GET", "/endpoints", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("read should not require the token, got %d", resp.StatusCode)
	}

	resp, _ = h.do(t, "POST", "/endpoints/ep-9/reset", "", "")
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("mutation without token should 401, got %d", resp.StatusCode)
	}
	if len(h.endpoints.resetIDs) != 0 {
		t.Fatalf("reset should not have run")
	}

	resp, _ = h.do(t, "POST", "/endpoints/ep-9/reset", "", "hunter2")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("mutation with token = %d", resp.StatusCode)
	}
	if len(h.endpoints.resetIDs) != 1 || h.endpoints.resetIDs[0] != "ep-9" {
		t.Fatalf("reset ids = %v", h.endpoints.resetIDs)
	}
}

func TestListConflictsDefaultsToEscalated(t *testing.T) {
	h := newHarness(t, "")
	resp, _ := h.do(t, "GET", "/conflicts", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if h.conflicts.listed != confdom.StatusEscalated {
		t.Fatalf("default status = %s", h.conflicts.listed)
	}

	resp, env := h.do(t, "GET", "/conflicts?status=SIDEWAYS", "", "")
	if resp.StatusCode != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("bad status should 422, got %d %+v", resp.StatusCode, env)
	}
}

func TestGetConflictNotFound(t *testing.T) {
	h := newHarness(t, "")
	resp, env := h.do(t, "GET", "/conflicts/nope", "", "")
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("missing conflict should 404, got %d", resp.StatusCode)
	}
	if env.Code != perr.ErrorCodeNotFound {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestTransitionRule(t *testing.T) {
	h := newHarness(t, "")
	body := `{"to":"APPROVED","source":"legal-review","action":"ROLLBACK","note":"manual"}`
	resp, _ := h.do(t, "POST", "/rules/r-42/transition", body, "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if h.rules.lastID != "r-42" ||
		h.rules.lastReq.To != statusgate.StatusApproved ||
		h.rules.lastReq.SystemAction != statusgate.ActionRollback ||
		h.rules.lastReq.SourceContext != "legal-review" {
		t.Fatalf("request = %+v", h.rules.lastReq)
	}
}

func TestTransitionRuleRejectsBadBody(t *testing.T) {
	h := newHarness(t, "")
	resp, env := h.do(t, "POST", "/rules/r-42/transition", `{"to":"SIDEWAYS","source":"x"}`, "")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("bad enum should 400, got %d %+v", resp.StatusCode, env)
	}
}

func TestRulesByConcept(t *testing.T) {
	h := newHarness(t, "")
	resp, env := h.do(t, "GET", "/concepts/vat-standard-rate/rules", "", "")
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	items, ok := env.Data.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("data = %#v", env.Data)
	}
}
