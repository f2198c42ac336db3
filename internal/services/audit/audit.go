// Package audit appends pipeline events and agent runs to ClickHouse.
//
// Writes are best effort: a sink failure is logged and swallowed so that
// auditing can never block or fail the operation being audited. A nil
// ClickHouse seam degrades to log-only mode.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"regtruth/internal/platform/logger"
	"regtruth/internal/platform/store"
)

const (
	eventsTable = "regtruth.audit_events"
	runsTable   = "regtruth.agent_runs"
)

// AgentRun records one LLM invocation end to end
type AgentRun struct {
	ID         string
	Agent      string // "arbiter" | "extraction"
	Model      string
	EntityType string // "conflict" | "evidence"
	EntityID   string
	Status     string // "ok" | "schema_error" | "transport_error"
	LatencyMS  int64
	Error      string
}

// Recorder is the audit sink shared by all services
type Recorder struct {
	CH  store.Clickhouse
	Log *logger.Logger
	Now func() time.Time
}

// New returns a Recorder writing to ch; ch may be nil for log-only mode
func New(ch store.Clickhouse) *Recorder {
	return &Recorder{
		CH:  ch,
		Log: logger.Named("audit"),
		Now: time.Now,
	}
}

// Event appends one audit event. Meta is flattened to a JSON string column
func (r *Recorder) Event(ctx context.Context, action, entityType, entityID string, meta map[string]any) {
	at := r.Now().UTC()

	metaJSON := "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metaJSON = string(b)
		}
	}

	r.Log.Debug().
		Str("action", action).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		RawJSON("meta", []byte(metaJSON)).
		Msg("audit event")

	if r.CH == nil {
		return
	}

	row := []any{uuid.NewString(), at, action, entityType, entityID, metaJSON}
	if err := r.CH.Insert(ctx, eventsTable, [][]any{row}); err != nil {
		r.Log.Warn().Err(err).Str("action", action).Msg("audit event dropped")
	}
}

// Run appends one agent run record. Assigns an id when the caller left it empty
func (r *Recorder) Run(ctx context.Context, run AgentRun) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	at := r.Now().UTC()

	r.Log.Debug().
		Str("run_id", run.ID).
		Str("agent", run.Agent).
		Str("status", run.Status).
		Int64("latency_ms", run.LatencyMS).
		Msg("agent run")

	if r.CH == nil {
		return
	}

	row := []any{
		run.ID, at, run.Agent, run.Model,
		run.EntityType, run.EntityID,
		run.Status, run.LatencyMS, run.Error,
	}
	if err := r.CH.Insert(ctx, runsTable, [][]any{row}); err != nil {
		r.Log.Warn().Err(err).Str("run_id", run.ID).Msg("agent run dropped")
	}
}
