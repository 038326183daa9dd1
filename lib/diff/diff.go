// Package diff compares slot sets between scrapes.
package diff

import "github.com/fiffu/slotwatch/lib/models"

// NewSlots returns the slots of current whose key is not in previous, in the
// order they appear in current.
func NewSlots(previous models.KeySet, current []models.Slot) []models.Slot {
	fresh := make([]models.Slot, 0)
	for _, slot := range current {
		if !previous.Has(slot.Key) {
			fresh = append(fresh, slot)
		}
	}
	return fresh
}

// Union appends to known every slot of fresh with an unseen key. The result
// never drops a known slot, so a slot that disappears and comes back is not
// reported twice.
func Union(known, fresh []models.Slot) []models.Slot {
	seen := models.NewKeySet()
	out := make([]models.Slot, 0, len(known)+len(fresh))
	for _, group := range [][]models.Slot{known, fresh} {
		for _, slot := range group {
			if seen.Has(slot.Key) {
				continue
			}
			seen.Add(slot.Key)
			out = append(out, slot)
		}
	}
	return out
}
