package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"regtruth/internal/core/doctext"
	perr "regtruth/internal/platform/errors"
	"regtruth/internal/services/discovery/domain"
)

// ProcessQueue drains one batch of pending items through fetch, classify and
// evidence capture. Per-item failures are isolated and reported through the
// scheduler's retry bookkeeping
func (s *Service) ProcessQueue(ctx context.Context) (int, error) {
	items, err := s.Sched.LeasePending(ctx, s.Cfg.FetchBatch)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if err := s.fetchOne(ctx, it); err != nil {
			s.Log.Warn().Err(err).
				Str("item_id", it.ID).
				Str("url", it.URL).
				Int("retry_count", it.RetryCount).
				Msg("item fetch failed")
			continue
		}
		done++
	}
	return done, nil
}

func (s *Service) fetchOne(ctx context.Context, it domain.Item) error {
	release, err := s.Gate.WaitSlot(ctx, it.Domain)
	if err != nil {
		// Circuit open or cancelled: not this item's fault, leave its retry
		// budget alone and let the lease lapse
		return err
	}
	defer release()

	res, err := s.Fetcher.Fetch(ctx, it.URL, it.ETag)
	if err != nil {
		s.Gate.RecordError(it.Domain, err.Error())
		if !perr.Retryable(err) {
			return s.Sched.MarkSkipped(ctx, it.ID, err.Error())
		}
		return s.Sched.ScanError(ctx, it, err.Error())
	}
	s.Gate.RecordSuccess(it.Domain)

	if res.NotModified {
		// Conditional fetch hit: content is byte-identical by definition
		return s.Sched.MarkFetched(ctx, it, false, it.ContentHash, it.ETag)
	}

	if len(res.Body) == 0 {
		return s.Sched.MarkSkipped(ctx, it.ID, "empty response body")
	}

	sum := sha256.Sum256(res.Body)
	hash := hex.EncodeToString(sum[:])
	// A first scan is not a change observation: there is no baseline
	changed := it.ContentHash != "" && it.ContentHash != hash

	ev := domain.Evidence{
		ItemID:      it.ID,
		URL:         it.URL,
		ContentHash: hash,
		IsChange:    changed,
	}
	if changed {
		ev.DiffSummary = diffSummary(it, hash, len(res.Body))
	}

	class := ClassifyContent(res.ContentType, it.URL, res.Body)
	scanned := false
	switch class {
	case domain.ContentPDFText:
		pdf, err := doctext.ExtractPDF(res.Body)
		if err != nil {
			return s.Sched.MarkSkipped(ctx, it.ID, err.Error())
		}
		if pdf.Scanned() {
			class = domain.ContentPDFScanned
			scanned = true
		} else {
			ev.Text = pdf.Text
		}
	case domain.ContentDocx:
		text, err := doctext.ExtractDOCX(res.Body)
		if err != nil {
			return s.Sched.MarkSkipped(ctx, it.ID, err.Error())
		}
		ev.Text = text
	case domain.ContentHTML, domain.ContentPlain:
		ev.Text = strings.TrimSpace(string(res.Body))
	}
	ev.Class = class

	if s.Cfg.DryRun {
		return s.Sched.MarkFetched(ctx, it, changed, hash, res.ETag)
	}

	stored, created, err := s.Bind.Bind(s.DB).InsertEvidence(ctx, ev)
	if err != nil {
		return s.Sched.ScanError(ctx, it, err.Error())
	}

	if created {
		switch {
		case scanned:
			if s.OCR != nil {
				if err := s.OCR.Enqueue(ctx, stored.ID); err != nil {
					s.Log.Warn().Err(err).Str("evidence_id", stored.ID).Msg("ocr enqueue failed")
				}
			}
		case stored.Text != "":
			if s.Extract != nil {
				if err := s.Extract.EnqueueEvidence(ctx, stored.ID); err != nil {
					s.Log.Warn().Err(err).Str("evidence_id", stored.ID).Msg("extract enqueue failed")
				}
			}
		}
		if s.Audit != nil {
			s.Audit.Event(ctx, "evidence.captured", "evidence", stored.ID, map[string]any{
				"url": it.URL, "class": string(class), "is_change": changed,
			})
		}
	}

	return s.Sched.MarkFetched(ctx, it, changed, hash, res.ETag)
}

// diffSummary is a human-oriented one-liner describing what changed. Real
// diffing happens downstream off the evidence rows; this is queue context
func diffSummary(it domain.Item, newHash string, newLen int) string {
	oldPfx := it.ContentHash
	if len(oldPfx) > 12 {
		oldPfx = oldPfx[:12]
	}
	newPfx := newHash
	if len(newPfx) > 12 {
		newPfx = newPfx[:12]
	}
	return fmt.Sprintf("content changed on scan %d: %s -> %s (%d bytes)",
		it.ScanCount+1, oldPfx, newPfx, newLen)
}
