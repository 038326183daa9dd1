package lib

import (
	"context"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/lib/notifier"
	"github.com/fiffu/slotwatch/lib/scraper"
	"github.com/fiffu/slotwatch/lib/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service is what the front ends (bot, API, CLI) use to manage
// subscriptions. The background checks live in the scheduler.
type Service struct {
	log      *zap.Logger
	store    *store.Store
	notifier *notifier.Notifier

	*subscribe
}

func NewService(lc fx.Lifecycle, log *zap.Logger, store *store.Store, scraper *scraper.Scraper, notifier *notifier.Notifier) *Service {
	return &Service{
		log, store, notifier,
		&subscribe{log, store, scraper},
	}
}

func (svc *Service) RemoveSubscription(ctx context.Context, userID, url string) (bool, error) {
	if normalized, err := svc.scraper.ValidateURL(url); err == nil {
		url = normalized
	}
	removed, err := svc.store.Remove(ctx, userID, url)
	if err != nil {
		return false, err
	}
	if removed {
		svc.log.Sugar().Infow("Removed subscription", "user_id", userID, "url", url)
	}
	return removed, nil
}

func (svc *Service) ListSubscriptions(ctx context.Context, userID string) (models.Subscriptions, error) {
	return svc.store.List(ctx, userID)
}

// AnnounceInitial sends the current availability listing for a subscription
// that was just added.
func (svc *Service) AnnounceInitial(ctx context.Context, result *AddResult) error {
	return svc.notifier.NotifyInitial(ctx, result.Subscription, result.Slots)
}
