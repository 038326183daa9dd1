// Package notifier turns slot changes into messages and hands them to the
// sender registered for the subscription's platform.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/senders"
	"go.uber.org/zap"
)

const (
	kindInitial = "initial"
	kindAlert   = "alert"
	kindWarning = "warning"
)

var errBackingOff = errors.New("recipient is rate limited")

type Notifier struct {
	senders senders.Registry
	log     *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	notBefore map[string]time.Time
}

func New(registry senders.Registry, log *zap.Logger) *Notifier {
	return &Notifier{
		senders:   registry,
		log:       log,
		now:       time.Now,
		notBefore: make(map[string]time.Time),
	}
}

func (n *Notifier) NotifyNewSlots(ctx context.Context, sub *models.Subscription, slots []models.Slot) error {
	return n.send(ctx, sub, kindAlert, senders.Message{
		Subject: fmt.Sprintf("New interview slots: %s", sub.DisplayLabel()),
		Body:    AlertMessage(sub, slots),
	})
}

func (n *Notifier) NotifyInitial(ctx context.Context, sub *models.Subscription, slots []models.Slot) error {
	return n.send(ctx, sub, kindInitial, senders.Message{
		Subject: fmt.Sprintf("Now tracking %s", sub.DisplayLabel()),
		Body:    InitialMessage(sub, slots),
	})
}

func (n *Notifier) NotifyFailureWarning(ctx context.Context, sub *models.Subscription, cause error) error {
	return n.send(ctx, sub, kindWarning, senders.Message{
		Subject: fmt.Sprintf("Problem checking %s", sub.DisplayLabel()),
		Body:    WarningMessage(sub, cause),
	})
}

func (n *Notifier) send(ctx context.Context, sub *models.Subscription, kind string, msg senders.Message) error {
	logger := n.log.Sugar().With("user_id", sub.UserID, "url", sub.URL, "platform", sub.Platform, "kind", kind)
	key := sub.Platform + ":" + sub.UserID

	if wait := n.backoffRemaining(key); wait > 0 {
		notificationsTotal.WithLabelValues(sub.Platform, kind, "deferred").Inc()
		return &models.NotifyError{Kind: models.NotifyRateLimited, UserID: sub.UserID, RetryAfter: wait, Err: errBackingOff}
	}

	sender, ok := n.senders[sub.Platform]
	if !ok {
		notificationsTotal.WithLabelValues(sub.Platform, kind, "failed").Inc()
		return &models.NotifyError{Kind: models.NotifyFailed, UserID: sub.UserID, Err: fmt.Errorf("no sender for platform %q", sub.Platform)}
	}

	id, err := sender.Send(ctx, sub.UserID, msg)
	if err == nil {
		notificationsTotal.WithLabelValues(sub.Platform, kind, "sent").Inc()
		logger.Infow("Notification sent", "message_id", id)
		return nil
	}

	var limited *senders.RateLimitedError
	switch {
	case errors.As(err, &limited):
		n.backoff(key, limited.RetryAfter)
		notificationsTotal.WithLabelValues(sub.Platform, kind, "rate_limited").Inc()
		logger.Warnw("Recipient rate limited", "retry_after", limited.RetryAfter, "err", err)
		return &models.NotifyError{Kind: models.NotifyRateLimited, UserID: sub.UserID, RetryAfter: limited.RetryAfter, Err: err}

	case errors.Is(err, senders.ErrRecipientUnreachable):
		notificationsTotal.WithLabelValues(sub.Platform, kind, "unreachable").Inc()
		logger.Warnw("Recipient unreachable", "err", err)
		return &models.NotifyError{Kind: models.NotifyUnreachable, UserID: sub.UserID, Err: err}

	default:
		notificationsTotal.WithLabelValues(sub.Platform, kind, "failed").Inc()
		logger.Errorw("Notification failed", "err", err)
		return &models.NotifyError{Kind: models.NotifyFailed, UserID: sub.UserID, Err: err}
	}
}

func (n *Notifier) backoffRemaining(key string) time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()

	until, ok := n.notBefore[key]
	if !ok {
		return 0
	}
	wait := until.Sub(n.now())
	if wait <= 0 {
		delete(n.notBefore, key)
		return 0
	}
	return wait
}

func (n *Notifier) backoff(key string, d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()

	until := n.now().Add(d)
	if until.After(n.notBefore[key]) {
		n.notBefore[key] = until
	}
}
