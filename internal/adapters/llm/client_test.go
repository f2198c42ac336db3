package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	arbdom "regtruth/internal/services/arbiter/domain"
	"regtruth/internal/services/audit"
	extdom "regtruth/internal/services/extraction/domain"
)

type fakeChat struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		return openai.ChatCompletionResponse{}, errors.New("json mode not requested")
	}
	i := f.calls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.responses[i]}},
		},
	}, nil
}

type runLog struct{ runs []audit.AgentRun }

func (r *runLog) Run(_ context.Context, run audit.AgentRun) { r.runs = append(r.runs, run) }

func newTestClient(api chatAPI, runs RunRecorder) *Client {
	return &Client{
		api:      api,
		opts:     Options{Model: "test-model", Temperature: 0.1, MaxRetries: 2, MaxTokens: 256},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		runs:     runs,
		log:      *logger.Named("llm"),
		now:      time.Now,
	}
}

const goodVerdict = `{
  "conflict_type": "VALUE_MISMATCH",
  "winner": "RULE_A_PREVAILS",
  "strategy": "hierarchy",
  "confidence": 0.92,
  "rationale": "LAW outranks GUIDANCE for the same window."
}`

func arbInput() arbdom.Input {
	return arbdom.Input{ConflictID: "c-1", ConflictType: "VALUE_MISMATCH", ConceptSlug: "vat-rate-standard"}
}

func TestArbitrate_OK(t *testing.T) {
	runs := &runLog{}
	c := newTestClient(&fakeChat{responses: []string{goodVerdict}}, runs)

	v, err := c.Arbitrate(context.Background(), arbInput())
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if v.Winner != arbdom.WinnerRuleA || v.Strategy != arbdom.StrategyHierarchy {
		t.Fatalf("verdict = %+v", v)
	}
	if len(runs.runs) != 1 || runs.runs[0].Status != "ok" || runs.runs[0].Model != "test-model" {
		t.Fatalf("runs = %+v", runs.runs)
	}
}

func TestArbitrate_RetriesMalformedThenSucceeds(t *testing.T) {
	runs := &runLog{}
	chat := &fakeChat{responses: []string{
		`{"winner": "COIN_FLIP"}`, // bad enum, fails validation
		goodVerdict,
	}}
	c := newTestClient(chat, runs)

	v, err := c.Arbitrate(context.Background(), arbInput())
	if err != nil {
		t.Fatalf("Arbitrate: %v", err)
	}
	if v.Winner != arbdom.WinnerRuleA {
		t.Fatalf("verdict = %+v", v)
	}
	if chat.calls != 2 {
		t.Fatalf("calls = %d, want 2", chat.calls)
	}
	if runs.runs[0].Status != "schema_error" || runs.runs[1].Status != "ok" {
		t.Fatalf("runs = %+v", runs.runs)
	}
}

func TestArbitrate_BoundedRetries(t *testing.T) {
	chat := &fakeChat{responses: []string{`not json at all`}}
	c := newTestClient(chat, &runLog{})

	_, err := c.Arbitrate(context.Background(), arbInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if perr.CodeOf(err) != perr.ErrorCodeSchema {
		t.Fatalf("code = %v, want schema", perr.CodeOf(err))
	}
	if chat.calls != 3 {
		t.Fatalf("calls = %d, want initial + 2 retries", chat.calls)
	}
}

func TestArbitrate_ConfidenceOutOfRange(t *testing.T) {
	chat := &fakeChat{responses: []string{`{
  "conflict_type": "VALUE_MISMATCH",
  "winner": "RULE_A_PREVAILS",
  "strategy": "hierarchy",
  "confidence": 1.4,
  "rationale": "too sure"
}`}}
	c := newTestClient(chat, &runLog{})

	if _, err := c.Arbitrate(context.Background(), arbInput()); err == nil {
		t.Fatal("expected schema rejection for confidence > 1")
	}
}

func TestArbitrate_TransportErrorNoRetry(t *testing.T) {
	runs := &runLog{}
	chat := &fakeChat{err: errors.New("connection refused")}
	c := newTestClient(chat, runs)

	_, err := c.Arbitrate(context.Background(), arbInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if chat.calls != 1 {
		t.Fatalf("calls = %d, transport errors must not retry here", chat.calls)
	}
	if runs.runs[0].Status != "transport_error" {
		t.Fatalf("runs = %+v", runs.runs)
	}
}

func TestExtract_OK(t *testing.T) {
	runs := &runLog{}
	chat := &fakeChat{responses: []string{`{
  "claims": [
    {
      "concept_slug": "vat-rate-standard",
      "value": "25%",
      "value_type": "PERCENT",
      "authority": "LAW",
      "risk_tier": "CRITICAL",
      "confidence": 0.9,
      "effective_from": "2025-01-01T00:00:00Z",
      "quotes": ["opca stopa PDV-a iznosi 25%"]
    }
  ]
}`}}
	c := newTestClient(chat, runs)

	claims, err := c.Extract(context.Background(), extdom.Input{EvidenceID: "e-1", Text: "..."})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(claims) != 1 || claims[0].ConceptSlug != "vat-rate-standard" {
		t.Fatalf("claims = %+v", claims)
	}
	if runs.runs[0].Agent != "extraction" || runs.runs[0].Status != "ok" {
		t.Fatalf("runs = %+v", runs.runs)
	}
}

func TestExtract_EmptyClaimsValid(t *testing.T) {
	c := newTestClient(&fakeChat{responses: []string{`{"claims": []}`}}, nil)

	claims, err := c.Extract(context.Background(), extdom.Input{EvidenceID: "e-1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(claims) != 0 {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestExtract_BoundedRetries(t *testing.T) {
	chat := &fakeChat{responses: []string{`<html>definitely not json</html>`}}
	c := newTestClient(chat, nil)

	if _, err := c.Extract(context.Background(), extdom.Input{EvidenceID: "e-1"}); err == nil {
		t.Fatal("expected error")
	}
	if chat.calls != 3 {
		t.Fatalf("calls = %d", chat.calls)
	}
}
