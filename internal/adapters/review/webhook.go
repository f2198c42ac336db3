// Package review raises human-review requests over a webhook.
//
// The arbiter treats review delivery as fire-and-forget: the conflict's
// ESCALATED state is the durable record, so this adapter keeps a short
// timeout and never retries
package review

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	arbdom "regtruth/internal/services/arbiter/domain"
)

const defaultTimeout = 5 * time.Second

// Options configures the Notifier
type Options struct {
	// URL receives the POSTed review request
	URL     string
	Timeout time.Duration
}

// Notifier implements the arbiter's ReviewPort over HTTP
type Notifier struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

var _ arbdom.ReviewPort = (*Notifier)(nil)

// New creates a Notifier. An empty URL yields a log-only notifier
func New(o Options) *Notifier {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Notifier{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("review"),
		now:  time.Now,
	}
}

type reviewPayload struct {
	ConflictID string `json:"conflict_id"`
	Reason     string `json:"reason"`
	Detail     string `json:"detail"`
	RaisedAt   string `json:"raised_at"`
}

// RequestReview posts one review request
func (n *Notifier) RequestReview(ctx context.Context, conflictID string, reason arbdom.EscalationReason, detail string) error {
	if n.opts.URL == "" {
		n.log.Info().
			Str("conflict_id", conflictID).
			Str("reason", string(reason)).
			Msg("review requested (no webhook configured)")
		return nil
	}

	body, err := json.Marshal(reviewPayload{
		ConflictID: conflictID,
		Reason:     string(reason),
		Detail:     detail,
		RaisedAt:   n.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return perr.InvalidArgumentf("marshal review payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return perr.InvalidArgumentf("review webhook url: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "review webhook")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return perr.Newf(perr.CodeForStatus(resp.StatusCode), "review webhook status %d", resp.StatusCode)
	}
	return nil
}
