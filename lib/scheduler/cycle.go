package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fiffu/slotwatch/lib/diff"
	"github.com/fiffu/slotwatch/lib/models"
	"go.uber.org/zap"
)

const reasonUnreachable = "recipient unreachable"

// cycle holds state shared by the workers of one cycle.
type cycle struct {
	id      string
	log     *zap.SugaredLogger
	limited sync.Map // recipient key -> struct{}
}

func recipientKey(sub *models.Subscription) string {
	return sub.Platform + ":" + sub.UserID
}

func (c *cycle) isLimited(sub *models.Subscription) bool {
	_, ok := c.limited.Load(recipientKey(sub))
	return ok
}

func (c *cycle) markLimited(sub *models.Subscription) {
	c.limited.Store(recipientKey(sub), struct{}{})
}

// check runs fetch, diff, notify and commit for one subscription. Failures
// stay with this subscription.
func (s *Scheduler) check(ctx context.Context, c *cycle, sub *models.Subscription) outcome {
	log := c.log.With("user_id", sub.UserID, "url", sub.URL)
	checkedAt := s.now()

	page, err := s.scraper.Fetch(ctx, sub.URL)
	if err != nil {
		s.recordFailure(ctx, c, sub, err, checkedAt)
		return outcomeErrored
	}

	fresh := diff.NewSlots(sub.KnownKeys(), page.Slots)
	if len(fresh) > 0 {
		if c.isLimited(sub) {
			log.Infow("Recipient rate limited this cycle, deferring", "new_slots", len(fresh))
			return outcomeDeferred
		}

		err := s.notifier.NotifyNewSlots(ctx, sub, fresh)
		kind, _ := models.NotifyKind(err)
		switch {
		case err == nil:
			if sub.NeedsReview {
				if err := s.store.ClearReview(ctx, sub.UserID, sub.URL); err != nil {
					log.Errorw("Failed to clear review flag", "err", err)
				}
			}
		case kind == models.NotifyRateLimited:
			c.markLimited(sub)
			log.Warnw("Notification rate limited, will retry next cycle", "new_slots", len(fresh), "err", err)
			return outcomeDeferred
		case kind == models.NotifyUnreachable:
			log.Warnw("Recipient unreachable, marking for review", "err", err)
			if err := s.store.MarkForReview(ctx, sub.UserID, sub.URL, reasonUnreachable); err != nil {
				log.Errorw("Failed to mark for review", "err", err)
			}
		default:
			log.Errorw("Failed to notify", "new_slots", len(fresh), "err", err)
		}
	}

	if err := s.store.UpdateKnownSlots(ctx, sub.ID, diff.Union(sub.Slots(), fresh), checkedAt); err != nil {
		log.Errorw("Failed to commit known slots", "err", err)
		return outcomeErrored
	}

	if len(fresh) > 0 {
		log.Infow("New slots", "new_slots", len(fresh))
		return outcomeUpdated
	}
	return outcomeUnchanged
}

func (s *Scheduler) recordFailure(ctx context.Context, c *cycle, sub *models.Subscription, cause error, checkedAt time.Time) {
	log := c.log.With("user_id", sub.UserID, "url", sub.URL)

	permanent := false
	var se *models.ScrapeError
	if errors.As(cause, &se) {
		permanent = se.Permanent()
	}
	log.Infow("Check failed", "kind", models.ScrapeKind(cause).String(), "err", cause)

	updated, err := s.store.RecordFailure(ctx, sub.UserID, sub.URL, cause, permanent, checkedAt)
	if err != nil {
		log.Errorw("Failed to record failure", "err", err)
		return
	}
	if updated == nil || !permanent {
		return
	}
	if updated.ConsecutiveFailures < s.opts.FailureThreshold || updated.FailureWarningSent {
		return
	}
	if c.isLimited(updated) {
		return
	}

	err = s.notifier.NotifyFailureWarning(ctx, updated, cause)
	kind, _ := models.NotifyKind(err)
	switch {
	case err == nil:
	case kind == models.NotifyRateLimited:
		c.markLimited(updated)
		return
	case kind == models.NotifyUnreachable:
		if err := s.store.MarkForReview(ctx, sub.UserID, sub.URL, reasonUnreachable); err != nil {
			log.Errorw("Failed to mark for review", "err", err)
		}
	default:
		log.Errorw("Failed to send failure warning", "err", err)
		return
	}

	if err := s.store.MarkFailureWarned(ctx, sub.UserID, sub.URL); err != nil {
		log.Errorw("Failed to mark failure warned", "err", err)
	}
}
