package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/slotwatch/config"
	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Message is transport neutral. Body uses the HTML subset that Telegram
// accepts, with newlines for line breaks.
type Message struct {
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) (string, error)
}

type Registry map[string]Sender

func NewSenderRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper, tg *telegram.Client) Registry {
	base := base{log, cfg, transport}
	registry := Registry{}
	if cfg.TelegramEnabled() {
		registry[models.PlatformTelegram] = &telegramSender{base, tg}
	}
	if cfg.MailgunEnabled() {
		registry[models.PlatformEmail] = &mailgunSender{base}
	}
	log.Sugar().Infow("Senders configured", "telegram", cfg.TelegramEnabled(), "email", cfg.MailgunEnabled())
	return registry
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
