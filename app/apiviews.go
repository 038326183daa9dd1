package app

import (
	"database/sql"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"github.com/fiffu/slotwatch/lib/scheduler"
)

type SubscriptionView struct {
	ID                  uint          `json:"id"`
	UserID              string        `json:"user_id"`
	Platform            string        `json:"platform"`
	URL                 string        `json:"url"`
	Label               string        `json:"label"`
	KnownSlots          []models.Slot `json:"known_slots"`
	CreatedAt           string        `json:"created_at"`
	LastCheckedAt       *string       `json:"last_checked_at"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	NeedsReview         bool          `json:"needs_review"`
	ReviewReason        string        `json:"review_reason,omitempty"`
}

func (view SubscriptionView) From(entity models.Subscription) SubscriptionView {
	return SubscriptionView{
		ID:                  entity.ID,
		UserID:              entity.UserID,
		Platform:            entity.Platform,
		URL:                 entity.URL,
		Label:               entity.Label,
		KnownSlots:          entity.Slots(),
		CreatedAt:           entity.CreatedAt.UTC().Format(time.RFC3339),
		LastCheckedAt:       isoformat(entity.LastCheckedAt),
		LastError:           entity.LastError,
		ConsecutiveFailures: entity.ConsecutiveFailures,
		NeedsReview:         entity.NeedsReview,
		ReviewReason:        entity.ReviewReason,
	}
}

type AddSubscriptionView struct {
	Subscription SubscriptionView `json:"subscription"`
	Created      bool             `json:"created"`
	Announced    bool             `json:"announced"`
}

type CycleView struct {
	CycleID   string `json:"cycle_id"`
	Selected  int    `json:"selected"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Errored   int    `json:"errored"`
	Deferred  int    `json:"deferred"`
	ElapsedMS int64  `json:"elapsed_msecs"`
}

func (view CycleView) From(report *scheduler.CycleReport) CycleView {
	return CycleView{
		CycleID:   report.ID,
		Selected:  report.Selected,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Errored:   report.Errored,
		Deferred:  report.Deferred,
		ElapsedMS: report.Duration.Milliseconds(),
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[T any, U Fromable[T, U]](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.UTC().Format(time.RFC3339)
	return &s
}
