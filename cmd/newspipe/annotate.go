package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liangzhi-data/newspipe/internal/annotate"
	"github.com/liangzhi-data/newspipe/internal/config"
	"github.com/liangzhi-data/newspipe/internal/dedup"
	"github.com/liangzhi-data/newspipe/internal/ingest"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/mongostore"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newAnnotateCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate <date>",
		Short: "Annotate one day of cleaned news and ingest the novel documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadPipeline()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runAnnotate(ctx, log, cfg, day)
		},
	}
}

func runAnnotate(ctx context.Context, log *slog.Logger, cfg *config.Pipeline, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	clean := mongostore.NewRawStore(client, cfg.CleanDatabase)
	docStore := mongostore.NewDocStore(client, cfg.Database, cfg.Documents, cfg.Fragments)
	run := stats.NewRun()

	collection := cfg.CleanPrefix + day.Format("200601")
	log.Info("annotation run started",
		slog.String("date", day.Format(models.DateLayout)),
		slog.String("collection", collection),
	)

	records, err := clean.FetchWindow(ctx, collection, cfg.Source, day, day.AddDate(0, 0, 1))
	if err != nil {
		log.Error("clean window fetch failed", slog.Any("err", err))
		records = nil
	}
	run.Input = len(records)
	log.Info("documents found", slog.Int("count", run.Input))

	docs := make([]models.RawNews, len(records))
	for i, record := range records {
		docs[i] = record.News()
	}

	annotator := annotate.NewClient(cfg.AnnotationURL, cfg.PipelineName, annotate.DefaultComponents, cfg.BatchSize, log)
	outcomes := annotator.AnnotateAll(ctx, docs)

	// The annotate path only scores titles; no word segmenter is needed.
	thresholds := dedup.DefaultThresholds()
	thresholds.Title = cfg.TitleThreshold
	searcher := dedup.NewSearcher(nil, thresholds, cfg.DocGapDays, 0, log)

	decider := ingest.NewDecider(searcher, run, log)
	decider.ProcessDocuments(ctx, docStore, outcomes)

	log.Info("annotation run finished", slog.String("summary", run.Summary()))
	return nil
}
