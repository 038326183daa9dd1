package models

import "fmt"

// Slot is one bookable appointment on a tracked page. Two slots with the same
// Key are the same slot, regardless of how the page rendered them.
type Slot struct {
	Key         string `json:"key"`
	DisplayText string `json:"display_text"`
}

// Page is the outcome of a single scrape.
type Page struct {
	Label string
	Slots []Slot
}

type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	set := make(KeySet, len(keys))
	for _, k := range keys {
		set.Add(k)
	}
	return set
}

func (ks KeySet) Add(key string) {
	ks[key] = struct{}{}
}

func (ks KeySet) Has(key string) bool {
	_, ok := ks[key]
	return ok
}

// SlotKey derives the identity of a slot from its date and displayed times.
// date must be ISO formatted and times zero-padded; end may be empty.
func SlotKey(date, start, end string) string {
	if end == "" {
		return fmt.Sprintf("%sT%s", date, start)
	}
	return fmt.Sprintf("%sT%s/%s", date, start, end)
}

func SlotDisplayText(date, start, end string) string {
	if end == "" {
		return fmt.Sprintf("%s | %s", date, start)
	}
	return fmt.Sprintf("%s | %s - %s", date, start, end)
}
