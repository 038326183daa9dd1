package lib

import (
	"context"
	"errors"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/lib/scraper"
	"github.com/fiffu/slotwatch/lib/store"
	"go.uber.org/zap"
)

type AddResult struct {
	Subscription *models.Subscription
	Slots        []models.Slot
	Created      bool // false when the url was already tracked by this user
}

type subscribe struct {
	log     *zap.Logger
	store   *store.Store
	scraper *scraper.Scraper
}

// AddSubscription validates the url, scrapes it once and persists the
// subscription with the scraped slots as its known set. Nothing is stored
// unless every step succeeds. Adding a tracked url again returns the
// existing subscription.
func (svc *subscribe) AddSubscription(ctx context.Context, userID, platform, rawURL string) (*AddResult, error) {
	if platform == "" {
		platform = models.PlatformTelegram
	}
	if platform != models.PlatformTelegram && platform != models.PlatformEmail {
		return nil, models.ErrUnsupportedPlatform
	}

	url, err := svc.scraper.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	existing, err := svc.store.Get(ctx, userID, url)
	if err == nil {
		return &AddResult{Subscription: existing, Slots: existing.Slots()}, nil
	} else if !errors.Is(err, models.ErrSubscriptionNotFound) {
		return nil, err
	}

	page, err := svc.scraper.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	sub, err := svc.store.Add(ctx, &models.Subscription{
		UserID:   userID,
		URL:      url,
		Platform: platform,
		Label:    page.Label,
	}, page.Slots)
	switch {
	case errors.Is(err, models.ErrAlreadyExists):
		return &AddResult{Subscription: sub, Slots: sub.Slots()}, nil
	case err != nil:
		return nil, err
	}

	svc.log.Sugar().Infow("Created subscription", "user_id", userID, "url", url, "label", page.Label, "slots", len(page.Slots))
	return &AddResult{Subscription: sub, Slots: page.Slots, Created: true}, nil
}
