package models

import (
	"database/sql"
	"time"
)

const (
	PlatformTelegram = "telegram"
	PlatformEmail    = "email"
)

type Subscription struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID   string `gorm:"uniqueIndex:idx_user_url;not null"` // Composite unique index on user & url
	URL      string `gorm:"uniqueIndex:idx_user_url;not null"`
	Platform string `gorm:"not null;default:telegram"`
	Label    string

	LastCheckedAt       sql.NullTime
	LastError           string
	ConsecutiveFailures int
	FailureWarningSent  bool
	NeedsReview         bool
	ReviewReason        string

	KnownSlots []KnownSlot
}

type Subscriptions []Subscription

// KnownSlot is one member of a subscription's known set. Rows are only ever
// added by a commit; the set is the union of everything observed so far.
type KnownSlot struct {
	ID             uint   `gorm:"primaryKey"`
	SubscriptionID uint   `gorm:"uniqueIndex:idx_subscription_slot;not null"`
	Key            string `gorm:"column:slot_key;uniqueIndex:idx_subscription_slot;not null"`
	DisplayText    string
	FirstSeenAt    time.Time
}

func (sub *Subscription) KnownKeys() KeySet {
	keys := make(KeySet, len(sub.KnownSlots))
	for _, ks := range sub.KnownSlots {
		keys.Add(ks.Key)
	}
	return keys
}

// Slots returns the known set as slots, in the order they were first seen.
func (sub *Subscription) Slots() []Slot {
	slots := make([]Slot, len(sub.KnownSlots))
	for i, ks := range sub.KnownSlots {
		slots[i] = Slot{Key: ks.Key, DisplayText: ks.DisplayText}
	}
	return slots
}

// DisplayLabel falls back to the url when the page never yielded a name.
func (sub *Subscription) DisplayLabel() string {
	if sub.Label != "" {
		return sub.Label
	}
	return sub.URL
}
