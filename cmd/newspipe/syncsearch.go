package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liangzhi-data/newspipe/internal/config"
	"github.com/liangzhi-data/newspipe/internal/essink"
	"github.com/liangzhi-data/newspipe/internal/ingest"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/mongostore"
	"github.com/liangzhi-data/newspipe/internal/rundate"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newSyncSearchCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-search <date>",
		Short: "Index one day of documents into the search destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadSearchSync()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runSyncSearch(ctx, log, cfg, day)
		},
	}
}

func runSyncSearch(ctx context.Context, log *slog.Logger, cfg *config.SearchSync, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	es, err := essink.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return err
	}

	docStore := mongostore.NewDocStore(client, cfg.Database, cfg.Documents, cfg.Fragments)
	run := stats.NewRun()
	start, end := rundate.Window(day)
	log.Info("search sync started", slog.String("date", day.Format(models.DateLayout)))

	docs, err := docStore.FetchRange(ctx, start, end)
	if err != nil {
		log.Error("document window fetch failed", slog.Any("err", err))
		docs = nil
	}
	run.Input = len(docs)

	for _, doc := range docs {
		searchDoc, skip := ingest.BuildSearchDoc(doc)
		if skip != "" {
			log.Info("document not indexed",
				slog.String("key", doc.Key),
				slog.String("reason", skip),
			)
			run.Filtered++
			continue
		}

		// The same key recurs when a source window is reprocessed: remove the
		// old copy first, with the delete visible before the insert, so the
		// title dedup below cannot match the document against itself.
		exists, err := es.Exists(ctx, doc.Key)
		if err != nil {
			log.Error("existence check failed", slog.String("key", doc.Key), slog.Any("err", err))
			run.Failed++
			continue
		}
		if exists {
			if err := es.Delete(ctx, doc.Key, true); err != nil {
				log.Error("overwrite delete failed", slog.String("key", doc.Key), slog.Any("err", err))
				run.Failed++
				continue
			}
			log.Info("overwriting indexed document", slog.String("key", doc.Key))
		}

		score, err := es.MaxTitleScore(ctx, doc.Title)
		if err != nil {
			log.Error("title dedup search failed", slog.String("key", doc.Key), slog.Any("err", err))
			run.Failed++
			continue
		}
		if score > cfg.TitleScoreCeiling {
			log.Info("similar document already indexed",
				slog.String("key", doc.Key),
				slog.Float64("score", score),
			)
			run.Duplicates++
			continue
		}

		if err := es.Index(ctx, doc.Key, searchDoc); err != nil {
			log.Error("index failed", slog.String("key", doc.Key), slog.Any("err", err))
			run.Failed++
			continue
		}
		run.AddPersisted(cfg.ElasticsearchIndex)
	}

	log.Info("search sync finished", slog.String("summary", run.Summary()))
	return nil
}
