// Package store persists subscriptions and their known slot sets.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fiffu/slotwatch/lib/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns every Subscription record. Writes are serialized so that an add,
// a remove and a scheduler commit for the same (user, url) never interleave.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	mu  sync.Mutex
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Subscription{},
		&models.KnownSlot{},
	)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &models.StoreError{Op: op, Err: err}
}

func preloadKnownSlots(db *gorm.DB) *gorm.DB {
	return db.Preload("KnownSlots", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("known_slots.id")
	})
}

// Add persists sub along with its initial known set. If the (user, url) pair
// is already tracked, the existing record is returned with ErrAlreadyExists.
func (s *Store) Add(ctx context.Context, sub *models.Subscription, slots []models.Slot) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found := preloadKnownSlots(tx).
			Where("user_id = ? AND url = ?", sub.UserID, sub.URL).
			Limit(1).
			Find(&existing)
		if err := found.Error; err != nil {
			return err
		}
		if found.RowsAffected > 0 {
			return models.ErrAlreadyExists
		}

		now := time.Now().UTC()
		sub.KnownSlots = knownSlotRows(0, slots, now)
		return tx.Create(sub).Error
	})

	switch {
	case errors.Is(err, models.ErrAlreadyExists):
		return &existing, err
	case err != nil:
		return nil, storeErr("add", err)
	}
	return sub, nil
}

func (s *Store) Get(ctx context.Context, userID, url string) (*models.Subscription, error) {
	var sub models.Subscription
	tx := preloadKnownSlots(s.db.WithContext(ctx)).
		Where("user_id = ? AND url = ?", userID, url).
		Take(&sub)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrSubscriptionNotFound
	} else if err != nil {
		return nil, storeErr("get", err)
	}
	return &sub, nil
}

// Remove deletes the subscription and its known slots, reporting whether
// anything was tracked.
func (s *Store) Remove(ctx context.Context, userID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		found := tx.Where("user_id = ? AND url = ?", userID, url).Limit(1).Find(&sub)
		if err := found.Error; err != nil {
			return err
		}
		if found.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("subscription_id = ?", sub.ID).Delete(&models.KnownSlot{}).Error; err != nil {
			return err
		}
		del := tx.Delete(&sub)
		removed = del.RowsAffected > 0
		return del.Error
	})
	if err != nil {
		return false, storeErr("remove", err)
	}
	return removed, nil
}

func (s *Store) List(ctx context.Context, userID string) (models.Subscriptions, error) {
	var subs models.Subscriptions
	tx := preloadKnownSlots(s.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("subscriptions.id").
		Find(&subs)
	if err := tx.Error; err != nil {
		return nil, storeErr("list", err)
	}
	return subs, nil
}

// AllActive returns every subscription with its known set, read in a single
// transaction so that a cycle sees each committed record exactly once.
func (s *Store) AllActive(ctx context.Context) (models.Subscriptions, error) {
	var subs models.Subscriptions
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return preloadKnownSlots(tx).Order("subscriptions.id").Find(&subs).Error
	})
	if err != nil {
		return nil, storeErr("all_active", err)
	}
	return subs, nil
}

// UpdateKnownSlots adds slots to the known set of subscription id and
// records a successful check. Keys already known are left alone, so the set
// only grows. Committing to a subscription that was removed meanwhile is a
// no-op, including one that was removed and added again: the new record has
// a new id.
func (s *Store) UpdateKnownSlots(ctx context.Context, id uint, slots []models.Slot, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		found := tx.Where("id = ?", id).Limit(1).Find(&sub)
		if err := found.Error; err != nil {
			return err
		}
		if found.RowsAffected == 0 {
			return nil
		}

		if rows := knownSlotRows(sub.ID, slots, checkedAt); len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}

		return tx.Model(&sub).Updates(map[string]any{
			"last_checked_at":      checkedAt,
			"last_error":           "",
			"consecutive_failures": 0,
			"failure_warning_sent": false,
		}).Error
	})
	return storeErr("update_known_slots", err)
}

// RecordFailure keeps the known set untouched and stores the cause of a
// failed check. Permanent failures advance the consecutive failure counter.
// A removed subscription yields (nil, nil).
func (s *Store) RecordFailure(ctx context.Context, userID, url string, cause error, permanent bool, checkedAt time.Time) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sub models.Subscription
	var found bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND url = ?", userID, url).Limit(1).Find(&sub)
		if err := res.Error; err != nil {
			return err
		}
		if found = res.RowsAffected > 0; !found {
			return nil
		}

		updates := map[string]any{
			"last_checked_at": checkedAt,
			"last_error":      cause.Error(),
		}
		if permanent {
			updates["consecutive_failures"] = gorm.Expr("consecutive_failures + 1")
		}
		if err := tx.Model(&sub).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&sub, sub.ID).Error
	})
	if err != nil {
		return nil, storeErr("record_failure", err)
	}
	if !found {
		return nil, nil
	}
	return &sub, nil
}

func (s *Store) MarkFailureWarned(ctx context.Context, userID, url string) error {
	return s.updateFields(ctx, "mark_failure_warned", userID, url, map[string]any{
		"failure_warning_sent": true,
	})
}

func (s *Store) MarkForReview(ctx context.Context, userID, url, reason string) error {
	return s.updateFields(ctx, "mark_for_review", userID, url, map[string]any{
		"needs_review":  true,
		"review_reason": reason,
	})
}

func (s *Store) ClearReview(ctx context.Context, userID, url string) error {
	return s.updateFields(ctx, "clear_review", userID, url, map[string]any{
		"needs_review":  false,
		"review_reason": "",
	})
}

func (s *Store) updateFields(ctx context.Context, op, userID, url string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND url = ?", userID, url).
		Updates(fields)
	return storeErr(op, tx.Error)
}

func knownSlotRows(subscriptionID uint, slots []models.Slot, seenAt time.Time) []models.KnownSlot {
	rows := make([]models.KnownSlot, len(slots))
	for i, slot := range slots {
		rows[i] = models.KnownSlot{
			SubscriptionID: subscriptionID,
			Key:            slot.Key,
			DisplayText:    slot.DisplayText,
			FirstSeenAt:    seenAt,
		}
	}
	return rows
}
