package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liangzhi-data/newspipe/internal/config"
	"github.com/liangzhi-data/newspipe/internal/ingest"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/mongostore"
	"github.com/liangzhi-data/newspipe/internal/mysqlsink"
	"github.com/liangzhi-data/newspipe/internal/rundate"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newSyncMySQLCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-mysql <date>",
		Short: "Fan one day of documents out to the per-industry event databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadMySQLSync()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runSyncMySQL(ctx, log, cfg, day)
		},
	}
}

func runSyncMySQL(ctx context.Context, log *slog.Logger, cfg *config.MySQLSync, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	docStore := mongostore.NewDocStore(client, cfg.Database, cfg.Documents, cfg.Fragments)
	sink := mysqlsink.NewSink(cfg.MySQLDSN, mysqlsink.DefaultDestinations())
	defer sink.Close()

	run := stats.NewRun()
	start, end := rundate.Window(day)
	log.Info("mysql sync started", slog.String("date", day.Format(models.DateLayout)))

	docs, err := docStore.FetchRange(ctx, start, end)
	if err != nil {
		log.Error("document window fetch failed", slog.Any("err", err))
		docs = nil
	}
	run.Input = len(docs)

	for _, doc := range docs {
		eventType := doc.EventType()
		if eventType == "" {
			// Only event-tagged documents flow to the event tables.
			run.Filtered++
			continue
		}

		industries := ingest.ResolveIndustries(doc.Tags)
		if len(industries) == 0 {
			run.Filtered++
			continue
		}

		event := mysqlsink.Event{
			ID:        doc.Key,
			Name:      doc.Title,
			Time:      models.DatePart(doc.PublishTime),
			EventType: eventType,
			Content:   doc.Abstract,
		}

		// One destination failing must not stop the others.
		for _, industry := range industries {
			if err := sink.Insert(ctx, industry, event); err != nil {
				if errors.Is(err, mysqlsink.ErrUnknownIndustry) {
					log.Info("industry has no destination", slog.String("industry", industry))
					continue
				}
				log.Error("event insert failed",
					slog.String("id", doc.Key),
					slog.String("industry", industry),
					slog.Any("err", err),
				)
				run.Failed++
				continue
			}
			run.AddPersisted(industry)
		}
	}

	log.Info("mysql sync finished", slog.String("summary", run.Summary()))
	return nil
}
