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
	"github.com/liangzhi-data/newspipe/internal/rundate"
	"github.com/liangzhi-data/newspipe/internal/similarity"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newFragmentsCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "fragments <date>",
		Short: "Extract and deduplicate event fragments from one day of documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadFragment()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runFragments(ctx, log, cfg, day)
		},
	}
}

func runFragments(ctx context.Context, log *slog.Logger, cfg *config.Fragment, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	scorer, err := similarity.NewScorer()
	if err != nil {
		return err
	}

	docStore := mongostore.NewDocStore(client, cfg.Database, cfg.Documents, cfg.Fragments)
	run := stats.NewRun()

	start, end := rundate.Window(day)
	log.Info("fragment run started", slog.String("date", day.Format(models.DateLayout)))

	docs, err := docStore.FetchRange(ctx, start, end)
	if err != nil {
		log.Error("document window fetch failed", slog.Any("err", err))
		docs = nil
	}
	run.Input = len(docs)
	log.Info("documents found", slog.Int("count", run.Input))

	extractor := annotate.NewFragmentClient(cfg.FragmentURL, cfg.BatchSize, log)
	outcomes := extractor.ExtractAll(ctx, docs)

	thresholds := dedup.DefaultThresholds()
	thresholds.Text = cfg.TextThreshold
	thresholds.Entity = cfg.EntityThreshold
	searcher := dedup.NewSearcher(scorer, thresholds, 0, cfg.WindowDays, log)

	decider := ingest.NewDecider(searcher, run, log)
	decider.ProcessFragments(ctx, docStore, outcomes)

	log.Info("fragment run finished", slog.String("summary", run.Summary()))
	return nil
}
