package app

import (
	"context"
	"net/http"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib/notifier"
	"github.com/fiffu/slotwatch/lib/scheduler"
	"github.com/fiffu/slotwatch/lib/scraper"
	"github.com/fiffu/slotwatch/lib/store"
	"github.com/fiffu/slotwatch/senders"
	"github.com/fiffu/slotwatch/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRenderer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) scraper.Renderer {
	if cfg.Scraper.Renderer == "http" {
		return scraper.NewHTTPRenderer(transport, cfg.Scraper.Timeout)
	}
	return scraper.NewChromeRenderer(cfg.Scraper.ChromePath, cfg.Scraper.Timeout, cfg.Scraper.MaxDays, log)
}

func NewScraper(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, renderer scraper.Renderer) *scraper.Scraper {
	rule := scraper.URLRule{Host: cfg.Scraper.AllowedHost, PathPrefix: cfg.Scraper.PathPrefix}
	return scraper.New(renderer, rule, scraper.DefaultSchema(), log)
}

func NewTelegramClient(lc fx.Lifecycle, cfg *config.Config, transport http.RoundTripper) *telegram.Client {
	return telegram.NewClient(transport, cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.RateLimit)
}

func NewNotifier(lc fx.Lifecycle, log *zap.Logger, registry senders.Registry) *notifier.Notifier {
	return notifier.New(registry, log)
}

func NewScheduler(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *store.Store, scraper *scraper.Scraper, notifier *notifier.Notifier) *scheduler.Scheduler {
	sched := scheduler.New(store, scraper, notifier, log, scheduler.Options{
		Interval:         cfg.CheckInterval(),
		Concurrency:      cfg.Scheduler.Concurrency,
		FailureThreshold: cfg.Scheduler.FailureThreshold,
		ShutdownGrace:    cfg.Scheduler.ShutdownGrace,
	})

	lc.Append(fx.Hook{
		OnStart: sched.Start,
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop scheduler")
			return sched.Stop(ctx)
		},
	})
	return sched
}
