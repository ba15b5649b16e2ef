package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/liangzhi-data/newspipe/internal/config"
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/mongostore"
	"github.com/liangzhi-data/newspipe/internal/rundate"
	"github.com/liangzhi-data/newspipe/internal/stats"
)

func newPartitionCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "partition <date>",
		Short: "Clean one day of raw crawl data into its monthly partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadPartition()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runPartition(ctx, log, cfg, day)
		},
	}
}

func runPartition(ctx context.Context, log *slog.Logger, cfg *config.Partition, day time.Time) error {
	client, err := mongostore.Connect(ctx, cfg.URI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	source := mongostore.NewRawStore(client, cfg.SourceDatabase)
	target := mongostore.NewRawStore(client, cfg.TargetDatabase)
	run := stats.NewRun()

	log.Info("partition run started",
		slog.String("date", day.Format(models.DateLayout)),
		slog.String("source", cfg.SourceCollection),
	)

	records, err := source.FetchWindow(ctx, cfg.SourceCollection, cfg.Source, day, day.AddDate(0, 0, 1))
	if err != nil {
		// A failed source fetch leaves nothing to process, not a crash.
		log.Error("source window fetch failed", slog.Any("err", err))
		records = nil
	}
	run.Input = len(records)

	indexed := make(map[string]bool)

	for _, record := range records {
		if record.Content == "" {
			log.Info("record skipped: empty content", slog.String("id", record.ID.Hex()))
			run.Filtered++
			continue
		}

		publish, ok := rawPublishTime(record.PublishTime)
		if !ok {
			log.Info("record skipped: no publish time", slog.String("id", record.ID.Hex()))
			run.Filtered++
			continue
		}
		normalized, err := rundate.NormalizePublishTime(publish)
		if err != nil {
			log.Error("record skipped: bad publish time",
				slog.String("id", record.ID.Hex()),
				slog.Any("err", err),
			)
			run.Filtered++
			continue
		}
		record.PublishTime = normalized
		record.HTML = "" // raw html does not flow past the raw collection

		collection := cfg.TargetPrefix + record.CrawlTime.Format("200601")
		if !indexed[collection] {
			if err := target.EnsureCrawlTimeIndex(ctx, collection); err != nil {
				log.Warn("ensure index failed", slog.String("collection", collection), slog.Any("err", err))
			}
			indexed[collection] = true
		}

		overwritten, err := target.Overwrite(ctx, collection, record)
		if err != nil {
			log.Error("partition write failed", slog.String("id", record.ID.Hex()), slog.Any("err", err))
			run.Failed++
			continue
		}
		if overwritten {
			log.Info("overwrote previous record", slog.String("id", record.ID.Hex()))
		}
		run.AddPersisted(collection)
	}

	log.Info("partition run finished", slog.String("summary", run.Summary()))
	return nil
}

// rawPublishTime pulls the crawler-reported publish time out of whichever
// BSON shape it arrived in.
func rawPublishTime(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case primitive.DateTime:
		return v.Time().Format(models.TimeLayout), true
	default:
		return "", false
	}
}
