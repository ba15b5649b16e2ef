// Package dedup implements the windowed duplicate search run before a
// document or fragment is persisted. Three variants share the same scoring
// rules: a plain document search over a supplied window, a company-scoped
// document search that narrows the window by primary entity, and the fragment
// search over a 7-day trailing window.
package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/similarity"
)

// Reason explains which rule produced a duplicate verdict.
type Reason string

const (
	ReasonNone          Reason = "none"
	ReasonTextSimilar   Reason = "text-similar"
	ReasonEntitySimilar Reason = "entity-similar"
)

// Verdict is the outcome of one duplicate search.
type Verdict struct {
	IsDuplicate bool
	MatchedKey  string
	Reason      Reason
}

// Thresholds holds the similarity cut-offs. A candidate is duplicate when its
// score is strictly greater than the threshold.
type Thresholds struct {
	Title  float64
	Text   float64
	Entity float64
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{Title: 0.8, Text: 0.8, Entity: 0.8}
}

// DocumentWindow fetches previously stored documents sharing a primary company.
type DocumentWindow interface {
	DocumentsByCompany(ctx context.Context, company string) ([]models.Document, error)
}

// FragmentWindow fetches previously stored fragments published on or after a date.
type FragmentWindow interface {
	FragmentsSince(ctx context.Context, sinceDate string) ([]models.Fragment, error)
}

// Searcher applies the similarity rules with configured thresholds and windows.
type Searcher struct {
	scorer       *similarity.Scorer
	thresholds   Thresholds
	docGapDays   int
	fragmentDays int
	log          *slog.Logger
}

// NewSearcher builds a Searcher. gapDays bounds the document publish-time gap
// (records further apart are never compared); fragmentDays is the trailing
// window for fragment comparison.
func NewSearcher(scorer *similarity.Scorer, thresholds Thresholds, gapDays, fragmentDays int, log *slog.Logger) *Searcher {
	if gapDays <= 0 {
		gapDays = 10
	}
	if fragmentDays <= 0 {
		fragmentDays = 7
	}
	return &Searcher{
		scorer:       scorer,
		thresholds:   thresholds,
		docGapDays:   gapDays,
		fragmentDays: fragmentDays,
		log:          log,
	}
}

// FindDocumentDuplicate compares the candidate against every stored document
// in the window. Stored records whose publish-time gap from the candidate
// exceeds the configured ceiling are skipped, not scored.
func (s *Searcher) FindDocumentDuplicate(candidate models.Document, window []models.Document) Verdict {
	for _, stored := range window {
		score := s.documentScore(candidate, stored)
		if score > s.thresholds.Title {
			return Verdict{IsDuplicate: true, MatchedKey: stored.Key, Reason: ReasonTextSimilar}
		}
	}
	return Verdict{Reason: ReasonNone}
}

// FindCompanyDuplicate narrows the stored window to documents sharing the
// candidate's primary company, then compares only against stored records
// carrying the candidate's event type. A window-fetch failure is logged and
// fails open: ingestion is never blocked by the lookup.
func (s *Searcher) FindCompanyDuplicate(ctx context.Context, store DocumentWindow, candidate models.Document) Verdict {
	company := candidate.PrimaryCompany()
	if company == "" {
		return Verdict{Reason: ReasonNone}
	}

	window, err := store.DocumentsByCompany(ctx, company)
	if err != nil {
		s.log.Warn("duplicate window fetch failed, treating as novel",
			slog.String("company", company),
			slog.Any("err", err),
		)
		return Verdict{Reason: ReasonNone}
	}

	eventType := candidate.EventType()
	for _, stored := range window {
		for _, tag := range stored.Tags {
			if tag.Name != eventType {
				continue
			}
			s.log.Debug("comparing documents",
				slog.String("stored", stored.Title),
				slog.String("candidate", candidate.Title),
			)
			if s.documentScore(candidate, stored) > s.thresholds.Title {
				return Verdict{IsDuplicate: true, MatchedKey: stored.Key, Reason: ReasonTextSimilar}
			}
		}
	}
	return Verdict{Reason: ReasonNone}
}

// FindFragmentDuplicate compares the candidate against fragments published in
// the trailing window before its publish time. A fragment is duplicate when
// its sentence is word-similar to a stored one, or when it shares the event
// type and its entities overlap. The first matching record wins; the search
// does not look for a best match. Fetch failures fail open.
func (s *Searcher) FindFragmentDuplicate(ctx context.Context, store FragmentWindow, candidate models.Fragment) Verdict {
	published, err := time.Parse(models.TimeLayout, candidate.PublishTime)
	if err != nil {
		s.log.Warn("fragment has unparseable publish time, treating as novel",
			slog.String("doc_id", candidate.DocID),
			slog.String("publish_time", candidate.PublishTime),
		)
		return Verdict{Reason: ReasonNone}
	}
	since := published.AddDate(0, 0, -s.fragmentDays).Format(models.DateLayout)

	window, err := store.FragmentsSince(ctx, since)
	if err != nil {
		s.log.Warn("fragment window fetch failed, treating as novel", slog.Any("err", err))
		return Verdict{Reason: ReasonNone}
	}

	for _, stored := range window {
		if stored.PublishTime < since {
			continue
		}
		if s.scorer.Text(candidate.Section, stored.Section) > s.thresholds.Text {
			return Verdict{IsDuplicate: true, MatchedKey: stored.Key, Reason: ReasonTextSimilar}
		}
		if candidate.EventType == stored.EventType &&
			similarity.Entities(candidate.Entities, stored.Entities) > s.thresholds.Entity {
			return Verdict{IsDuplicate: true, MatchedKey: stored.Key, Reason: ReasonEntitySimilar}
		}
	}
	return Verdict{Reason: ReasonNone}
}

// documentScore returns the title similarity of two documents, or 0 when
// their publish times are further apart than the gap ceiling or unparseable.
func (s *Searcher) documentScore(candidate, stored models.Document) float64 {
	ct, err := time.Parse(models.TimeLayout, candidate.PublishTime)
	if err != nil {
		return 0
	}
	st, err := time.Parse(models.TimeLayout, stored.PublishTime)
	if err != nil {
		return 0
	}

	gap := ct.Sub(st)
	if gap < 0 {
		gap = -gap
	}
	if gap > time.Duration(s.docGapDays)*24*time.Hour {
		return 0
	}
	return similarity.Title(candidate.Title, stored.Title)
}
