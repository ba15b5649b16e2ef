package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liangzhi-data/newspipe/internal/archive"
	"github.com/liangzhi-data/newspipe/internal/config"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/mongostore"
	"github.com/liangzhi-data/newspipe/internal/mysqlsink"
	"github.com/liangzhi-data/newspipe/internal/rundate"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newArchiveCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <date>",
		Short: "Ship one day of documents to the bulk archive sink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadArchive()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runArchive(ctx, log, cfg, day)
		},
	}
}

func runArchive(ctx context.Context, log *slog.Logger, cfg *config.Archive, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	conceptDB, err := mysqlsink.Open(cfg.MySQLDSN, cfg.ConceptDatabase)
	if err != nil {
		return err
	}
	defer conceptDB.Close()

	concepts, err := mysqlsink.LoadConceptMap(ctx, conceptDB, cfg.ConceptTable)
	if err != nil {
		return err
	}
	log.Info("concept map loaded", slog.Int("sources", len(concepts)))

	sink := archive.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	defer sink.Close()

	docStore := mongostore.NewDocStore(client, cfg.Database, cfg.Documents, cfg.Fragments)
	run := stats.NewRun()
	start, end := rundate.Window(day)
	log.Info("archive run started", slog.String("date", day.Format(models.DateLayout)))

	docs, err := docStore.FetchRange(ctx, start, end)
	if err != nil {
		log.Error("document window fetch failed", slog.Any("err", err))
		docs = nil
	}
	run.Input = len(docs)

	now := time.Now().Format(models.TimeLayout)

	for batchStart := 0; batchStart < len(docs); batchStart += cfg.BatchSize {
		batchEnd := batchStart + cfg.BatchSize
		if batchEnd > len(docs) {
			batchEnd = len(docs)
		}

		records := make([]archive.Record, 0, batchEnd-batchStart)
		for _, doc := range docs[batchStart:batchEnd] {
			conceptID, ok := concepts[doc.Source]
			if !ok {
				log.Error("source has no concept mapping, add it to the concept table",
					slog.String("source", doc.Source),
					slog.String("key", doc.Key),
				)
				run.Filtered++
				continue
			}
			records = append(records, archive.BuildRecord(doc, conceptID, now))
		}

		if err := sink.Write(ctx, records); err != nil {
			log.Error("archive batch failed",
				slog.Int("from", batchStart),
				slog.Int("to", batchEnd),
				slog.Any("err", err),
			)
			run.Failed += len(records)
			continue
		}
		for range records {
			run.AddPersisted(cfg.KafkaTopic)
		}
	}

	log.Info("archive run finished", slog.String("summary", run.Summary()))
	return nil
}
