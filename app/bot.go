package app

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib"
	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/lib/notifier"
	"github.com/fiffu/slotwatch/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pollTimeout  = 30 * time.Second
	pollBackoff  = 5 * time.Second
	replyTimeout = 10 * time.Second
)

// Bot serves the Telegram chat commands. The chat id is the user id.
type Bot struct {
	client   *telegram.Client
	svc      *lib.Service
	log      *zap.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewBot(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, client *telegram.Client, svc *lib.Service) *Bot {
	bot := &Bot{
		client:   client,
		svc:      svc,
		log:      log,
		interval: cfg.CheckInterval(),
	}

	if !cfg.TelegramEnabled() || !cfg.Telegram.Polling {
		log.Sugar().Info("Telegram command polling is disabled")
		return bot
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			bot.Start()
			return nil
		},
		OnStop: bot.Stop,
	})
	return bot
}

func (b *Bot) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		b.poll(ctx)
	}()
	b.log.Sugar().Info("Telegram bot started")
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.log.Sugar().Info("Telegram bot stopped")
	return nil
}

func (b *Bot) poll(ctx context.Context) {
	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset, pollTimeout)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			wait := telegram.GetRetryAfter(err)
			if wait == 0 {
				wait = pollBackoff
			}
			b.log.Sugar().Warnw("Polling for updates failed", "retry_in", wait.String(), "err", err)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message != nil {
				b.handle(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *telegram.Message) {
	cmd, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	b.log.Sugar().Infow("Command received", "user_id", chatID, "command", cmd.name)

	switch cmd.name {
	case "start", "help":
		b.reply(ctx, chatID, notifier.WelcomeMessage(b.interval))
	case "add":
		b.add(ctx, chatID, cmd.arg)
	case "list":
		b.list(ctx, chatID)
	case "remove":
		b.remove(ctx, chatID, cmd.arg)
	default:
		b.reply(ctx, chatID, notifier.ErrorMessage("Unknown command. Send /help to see what I can do."))
	}
}

func (b *Bot) add(ctx context.Context, chatID, url string) {
	if url == "" {
		b.reply(ctx, chatID, notifier.ErrorMessage("Please provide a URL. Usage: /add <url>"))
		return
	}

	b.reply(ctx, chatID, "Fetching interview page...")
	res, err := b.svc.AddSubscription(ctx, chatID, models.PlatformTelegram, url)
	if err != nil {
		_, message := describeError(err)
		b.log.Sugar().Infow("Add rejected", "user_id", chatID, "url", url, "err", err)
		b.reply(ctx, chatID, notifier.ErrorMessage(message))
		return
	}

	if !res.Created {
		b.reply(ctx, chatID, fmt.Sprintf("You're already tracking <b>%s</b>.", html.EscapeString(res.Subscription.DisplayLabel())))
		return
	}
	if err := b.svc.AnnounceInitial(ctx, res); err != nil {
		b.log.Sugar().Warnw("Failed to announce initial slots", "user_id", chatID, "url", res.Subscription.URL, "err", err)
	}
}

func (b *Bot) list(ctx context.Context, chatID string) {
	subs, err := b.svc.ListSubscriptions(ctx, chatID)
	if err != nil {
		_, message := describeError(err)
		b.reply(ctx, chatID, notifier.ErrorMessage(message))
		return
	}
	b.reply(ctx, chatID, notifier.ListMessage(subs))
}

func (b *Bot) remove(ctx context.Context, chatID, url string) {
	if url == "" {
		b.reply(ctx, chatID, notifier.ErrorMessage("Please provide a URL. Usage: /remove <url>"))
		return
	}

	removed, err := b.svc.RemoveSubscription(ctx, chatID, url)
	switch {
	case err != nil:
		_, message := describeError(err)
		b.reply(ctx, chatID, notifier.ErrorMessage(message))
	case !removed:
		b.reply(ctx, chatID, notifier.ErrorMessage("You're not tracking that URL."))
	default:
		b.reply(ctx, chatID, "Stopped tracking "+html.EscapeString(url))
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	if _, err := b.client.SendMessage(ctx, chatID, text); err != nil {
		b.log.Sugar().Warnw("Failed to reply", "user_id", chatID, "err", err)
	}
}
