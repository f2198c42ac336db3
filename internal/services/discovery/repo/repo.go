// Package repo provides the discovery repository: endpoints, item inserts and
// evidence snapshots. Item status mutations live in the scheduler repo
package repo

import (
	"context"
	"time"

	"regtruth/internal/modkit/repokit"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/discovery/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// NewItem is one normalized URL ready for insert under an endpoint
type NewItem struct {
	URL      string
	NodeRole domain.NodeRole
	RiskTier string
}

// Storage defines the discovery repository
type Storage interface {
	InsertEndpoint(ctx context.Context, ep domain.Endpoint) (domain.Endpoint, error)
	// ResetEndpoint clears the error count and reactivates; operator escape
	// hatch for endpoints knocked out of rotation
	ResetEndpoint(ctx context.Context, id string) error
	ListEndpoints(ctx context.Context) ([]domain.Endpoint, error)
	DueEndpoints(ctx context.Context, limit int) ([]domain.Endpoint, error)
	// TouchEndpoint records a scrape outcome; endpoints deactivate after
	// maxConsecutiveErrors failures in a row
	TouchEndpoint(ctx context.Context, id string, ok bool, errMsg string, nextAt time.Time) error
	InsertItems(ctx context.Context, ep domain.Endpoint, xs []NewItem) (created int, err error)

	InsertEvidence(ctx context.Context, ev domain.Evidence) (domain.Evidence, bool, error)
	GetEvidence(ctx context.Context, id string) (domain.Evidence, error)
	SetEvidenceText(ctx context.Context, id, text string, class domain.ContentClass) error
}

// maxConsecutiveErrors before an endpoint is pulled out of rotation
const maxConsecutiveErrors = 10

const endpointCols = `id::text, domain, base_url, strategy, selector, priority,
	scrape_every, consecutive_errors, active, last_scraped_at, next_scrape_at`

func scanEndpoint(row repokit.Row) (domain.Endpoint, error) {
	var ep domain.Endpoint
	var scrapeEvery int64 // seconds
	err := row.Scan(
		&ep.ID, &ep.Domain, &ep.BaseURL, &ep.Strategy, &ep.Selector, &ep.Priority,
		&scrapeEvery, &ep.ConsecutiveErrors, &ep.Active, &ep.LastScrapedAt, &ep.NextScrapeAt,
	)
	ep.ScrapeEvery = time.Duration(scrapeEvery) * time.Second
	return ep, err
}

// InsertEndpoint implements Storage. New endpoints are active and due
// immediately
func (s *pg) InsertEndpoint(ctx context.Context, ep domain.Endpoint) (domain.Endpoint, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO discovery_endpoints
			(domain, base_url, strategy, selector, priority, scrape_every, active, next_scrape_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW())
		RETURNING `+endpointCols,
		ep.Domain, ep.BaseURL, ep.Strategy, ep.Selector, ep.Priority,
		int64(ep.ScrapeEvery/time.Second),
	)
	out, err := scanEndpoint(row)
	if err != nil {
		return domain.Endpoint{}, perr.FromPostgresf(err, "insert endpoint %s", ep.BaseURL)
	}
	return out, nil
}

// ResetEndpoint implements Storage
func (s *pg) ResetEndpoint(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE discovery_endpoints
		SET consecutive_errors = 0,
			last_error = '',
			active = TRUE,
			next_scrape_at = NOW()
		WHERE id = $1::uuid`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("endpoint %s not found", id)
	}
	return nil
}

// ListEndpoints implements Storage. Inactive endpoints are included so
// operators can spot the ones knocked out of rotation
func (s *pg) ListEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+endpointCols+`
		FROM discovery_endpoints
		ORDER BY domain ASC, priority DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// DueEndpoints implements Storage
func (s *pg) DueEndpoints(ctx context.Context, limit int) ([]domain.Endpoint, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+endpointCols+`
		FROM discovery_endpoints
		WHERE active AND next_scrape_at <= NOW()
		ORDER BY priority DESC, next_scrape_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// TouchEndpoint implements Storage
func (s *pg) TouchEndpoint(
	ctx context.Context,
	id string,
	ok bool,
	errMsg string,
	nextAt time.Time,
) error {
	if ok {
		_, err := s.q.Exec(ctx, `
			UPDATE discovery_endpoints
			SET consecutive_errors = 0,
				last_error = '',
				last_scraped_at = NOW(),
				next_scrape_at = $1
			WHERE id = $2::uuid`,
			nextAt, id,
		)
		return err
	}
	_, err := s.q.Exec(ctx, `
		UPDATE discovery_endpoints
		SET consecutive_errors = consecutive_errors + 1,
			last_error = $1,
			active = (consecutive_errors + 1 < $2),
			next_scrape_at = $3
		WHERE id = $4::uuid`,
		errMsg, maxConsecutiveErrors, nextAt, id,
	)
	return err
}

// InsertItems implements Storage. New items enter PENDING with an immediate
// next_scan_due; known URLs are left untouched
func (s *pg) InsertItems(
	ctx context.Context,
	ep domain.Endpoint,
	xs []NewItem,
) (int, error) {
	if len(xs) == 0 {
		return 0, nil
	}
	created := 0
	for _, it := range xs {
		tag, err := s.q.Exec(ctx, `
			INSERT INTO discovered_items
				(endpoint_id, url, domain, status, node_role, risk_tier, next_scan_due)
			VALUES ($1::uuid, $2, $3, 'PENDING', $4, $5, NOW())
			ON CONFLICT (url) DO NOTHING`,
			ep.ID, it.URL, ep.Domain, string(it.NodeRole), it.RiskTier,
		)
		if err != nil {
			return created, perr.FromPostgresf(err, "insert item %s", it.URL)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

const evidenceCols = `id::text, item_id::text, url, content_hash, content_class,
	text_content, is_change, diff_summary, fetched_at`

func scanEvidence(row repokit.Row) (domain.Evidence, error) {
	var ev domain.Evidence
	err := row.Scan(
		&ev.ID, &ev.ItemID, &ev.URL, &ev.ContentHash, &ev.Class,
		&ev.Text, &ev.IsChange, &ev.DiffSummary, &ev.FetchedAt,
	)
	return ev, err
}

// InsertEvidence implements Storage. Evidence is immutable and unique on
// (url, content_hash); refetching identical content returns the existing row
// with created=false
func (s *pg) InsertEvidence(ctx context.Context, ev domain.Evidence) (domain.Evidence, bool, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO evidence
			(item_id, url, content_hash, content_class, text_content, is_change, diff_summary)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url, content_hash) DO NOTHING
		RETURNING `+evidenceCols,
		ev.ItemID, ev.URL, ev.ContentHash, string(ev.Class), ev.Text, ev.IsChange, ev.DiffSummary,
	)
	out, err := scanEvidence(row)
	if err == nil {
		return out, true, nil
	}
	if !perr.IsNoRows(err) {
		return domain.Evidence{}, false, perr.FromPostgresf(err, "insert evidence for %s", ev.URL)
	}

	// Conflicted: fetch the standing row
	row = s.q.QueryRow(ctx, `
		SELECT `+evidenceCols+`
		FROM evidence
		WHERE url = $1 AND content_hash = $2`,
		ev.URL, ev.ContentHash,
	)
	out, err = scanEvidence(row)
	if err != nil {
		return domain.Evidence{}, false, err
	}
	return out, false, nil
}

// GetEvidence implements Storage
func (s *pg) GetEvidence(ctx context.Context, id string) (domain.Evidence, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+evidenceCols+` FROM evidence WHERE id = $1::uuid`, id)
	ev, err := scanEvidence(row)
	if err != nil {
		if perr.IsNoRows(err) {
			return domain.Evidence{}, perr.NotFoundf("evidence %s not found", id)
		}
		return domain.Evidence{}, err
	}
	return ev, nil
}

// SetEvidenceText implements Storage; used when OCR recovers text for a
// scanned document
func (s *pg) SetEvidenceText(ctx context.Context, id, text string, class domain.ContentClass) error {
	_, err := s.q.Exec(ctx, `
		UPDATE evidence
		SET text_content = $1, content_class = $2
		WHERE id = $3::uuid`,
		text, string(class), id,
	)
	return err
}
