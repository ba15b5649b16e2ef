// Package ingest holds the per-document decision engine: it takes annotation
// outcomes, applies validation and duplicate search, and persists the
// survivors with overwrite-by-key semantics.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/liangzhi-data/newspipe/internal/annotate"
	"github.com/liangzhi-data/newspipe/internal/dedup"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

// DocumentStore is the canonical store the decider persists into. Delete and
// insert are deliberately separate operations: an overwrite is observable as
// one delete plus one insert.
type DocumentStore interface {
	dedup.DocumentWindow
	DeleteDocument(ctx context.Context, key string) (bool, error)
	InsertDocument(ctx context.Context, doc models.Document) error
}

// FragmentStore persists extracted event fragments.
type FragmentStore interface {
	dedup.FragmentWindow
	InsertFragment(ctx context.Context, fragment models.Fragment) error
}

// Decider turns annotation outcomes into persist/skip decisions.
type Decider struct {
	searcher *dedup.Searcher
	stats    *stats.Run
	log      *slog.Logger
	now      func() string
}

// NewDecider wires a decider to its duplicate searcher and run counters.
func NewDecider(searcher *dedup.Searcher, run *stats.Run, log *slog.Logger) *Decider {
	return &Decider{
		searcher: searcher,
		stats:    run,
		log:      log,
		now:      nowString,
	}
}

// ProcessDocuments walks annotation outcomes in order and persists every
// novel, fully annotated document. The store's own contents grow as the run
// proceeds, so later documents are deduplicated against earlier ones from the
// same run.
func (d *Decider) ProcessDocuments(ctx context.Context, store DocumentStore, outcomes []annotate.Outcome) {
	for _, outcome := range outcomes {
		switch {
		case outcome.Failed():
			d.stats.Failed++

		case !outcome.Annotated():
			if outcome.Reason == annotate.FilterDuplicate {
				d.stats.Duplicates++
			} else {
				d.stats.Filtered++
			}

		default:
			d.stats.Annotated++
			d.decideDocument(ctx, store, outcome.NAF)
		}
	}
}

func (d *Decider) decideDocument(ctx context.Context, store DocumentStore, naf *annotate.NAF) {
	doc := documentFromNAF(naf)

	// Missing tags or entities is a business-rule filter, not an error.
	if len(doc.Tags) == 0 {
		d.log.Info("document has no tags, skipped", slog.String("key", doc.Key))
		d.stats.Filtered++
		return
	}
	if len(doc.Entities) == 0 {
		d.log.Info("document has no linked companies, skipped", slog.String("key", doc.Key))
		d.stats.Filtered++
		return
	}

	verdict := d.searcher.FindCompanyDuplicate(ctx, store, doc)
	if verdict.IsDuplicate {
		d.log.Info("document matches a stored record, skipped",
			slog.String("key", doc.Key),
			slog.String("matched", verdict.MatchedKey),
			slog.String("reason", string(verdict.Reason)),
		)
		d.stats.Duplicates++
		return
	}

	d.persistDocument(ctx, store, doc)
}

// persistDocument overwrites by key: delete first, then insert. The two
// operations are independent so an overwrite shows up in the delete count.
func (d *Decider) persistDocument(ctx context.Context, store DocumentStore, doc models.Document) {
	existed, err := store.DeleteDocument(ctx, doc.Key)
	if err != nil {
		d.log.Error("delete before insert failed", slog.String("key", doc.Key), slog.Any("err", err))
		d.stats.Failed++
		return
	}
	if existed {
		d.log.Info("overwriting stored document", slog.String("key", doc.Key))
	}

	if err := store.InsertDocument(ctx, doc); err != nil {
		d.log.Error("insert document failed", slog.String("key", doc.Key), slog.Any("err", err))
		d.stats.Failed++
		return
	}
	d.stats.AddPersisted("documents")
}

// ProcessFragments persists every novel fragment from the extraction
// outcomes. Each fragment is deduplicated on its own, independent of what
// happened to its parent document.
func (d *Decider) ProcessFragments(ctx context.Context, store FragmentStore, outcomes []annotate.FragmentOutcome) {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			d.stats.Failed++
			continue
		}
		if outcome.NAF == nil || len(outcome.NAF.EMFs) == 0 {
			continue
		}
		d.stats.Annotated++

		for _, emf := range outcome.NAF.EMFs {
			fragment := fragmentFromEMF(outcome.NAF, emf, d.now())

			verdict := d.searcher.FindFragmentDuplicate(ctx, store, fragment)
			if verdict.IsDuplicate {
				d.log.Info("fragment matches a stored record, skipped",
					slog.String("doc_id", fragment.DocID),
					slog.String("section", fragment.Section),
					slog.String("reason", string(verdict.Reason)),
				)
				d.stats.Duplicates++
				continue
			}

			if err := store.InsertFragment(ctx, fragment); err != nil {
				d.log.Error("insert fragment failed",
					slog.String("doc_id", fragment.DocID),
					slog.Any("err", err),
				)
				d.stats.Failed++
				continue
			}
			d.stats.AddPersisted("fragments")
		}
	}
}

func nowString() string {
	return time.Now().Format(models.TimeLayout)
}

func documentFromNAF(naf *annotate.NAF) models.Document {
	meta := naf.Metadata
	return models.Document{
		Key:         meta.DocID,
		Title:       meta.Title,
		Content:     meta.Content,
		Abstract:    meta.Abstract,
		URL:         meta.URL,
		HTML:        meta.HTML,
		ImgURL:      meta.ImgURL,
		Source:      meta.Source,
		PublishTime: meta.PublishTime,
		CreateTime:  meta.CrawlTime,
		UpdateTime:  meta.CrawlTime,
		Tags:        naf.Tags,
		Entities:    naf.Entities,
	}
}

func fragmentFromEMF(naf *annotate.FragmentNAF, emf annotate.EMF, now string) models.Fragment {
	publish := emf.PublishTime
	if publish == "" {
		publish = naf.PublishTime
	}
	return models.Fragment{
		Key:         uuid.NewString(),
		DocID:       naf.DocID,
		Title:       naf.Title,
		Section:     emf.Section,
		EventType:   emf.EventType,
		Entities:    emf.Entities,
		ActionWords: emf.ActionWords,
		EventDate:   emf.EventDate,
		PublishTime: publish,
		CreateTime:  now,
		UpdateTime:  now,
	}
}
