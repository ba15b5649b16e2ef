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
	"github.com/liangzhi-data/newspipe/internal/models"
	"github.com/liangzhi-data/newspipe/internal/notify"
)

func newPushCmd(log *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "push <date>",
		Short: "Deliver the daily digest of unpushed news to the chat groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDay(args)
			if err != nil {
				return err
			}
			cfg, err := config.LoadPush()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runPush(ctx, log, cfg, day)
		},
	}
}

func runPush(ctx context.Context, log *slog.Logger, cfg *config.Push, day time.Time) error {
	news, err := essink.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return err
	}
	companies, err := essink.New(cfg.ElasticsearchAddr, cfg.CompanyIndex, log)
	if err != nil {
		return err
	}

	dateStr := day.Format(models.DateLayout)
	start := day.AddDate(0, 0, -cfg.WindowDays).Format(models.DateLayout)
	log.Info("push run started", slog.String("date", dateStr), slog.String("window_start", start))

	hits, err := news.SearchUnpushed(ctx, start, dateStr, 100)
	if err != nil {
		log.Error("unpushed search failed", slog.Any("err", err))
		return nil
	}

	digest := notify.BuildDigest(ctx, hits, cfg.DetailURL, cfg.PushCount, companies.Logo, log)
	if len(digest.Links) == 0 {
		log.Info("nothing to push today")
		return nil
	}

	for _, id := range digest.PickedIDs {
		if err := news.MarkPushed(ctx, id); err != nil {
			log.Error("mark pushed failed", slog.String("id", id), slog.Any("err", err))
		}
	}

	sender := notify.NewSender(log)
	header := notify.DefaultHeader(dateStr)

	for i, name := range cfg.GroupNames {
		group := notify.Group{
			Name:    name,
			Webhook: cfg.GroupWebhooks[i],
			Secret:  cfg.GroupSecrets[i],
		}
		if err := sender.Send(ctx, group, header, digest.Links); err != nil {
			log.Error("digest delivery failed", slog.String("group", name), slog.Any("err", err))
			continue
		}
		log.Info("digest delivered",
			slog.String("group", name),
			slog.Int("items", len(digest.Links)),
			slog.Int("companies", len(digest.Companies)),
		)
	}

	return nil
}
