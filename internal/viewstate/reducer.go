// Package viewstate folds event channel frames onto a wishlist snapshot.
package viewstate

import (
	"github.com/wishlistai/backend/internal/events"
	"github.com/wishlistai/backend/internal/models"
)

// Snapshot is the view state of one wishlist: the list and its ordered items.
type Snapshot = models.PublicWishlist

// Effect is a side effect the caller must perform after Apply.
type Effect int

const (
	EffectNone Effect = iota
	// EffectRefetch asks for a full re-read of the wishlist because the
	// event carried no state.
	EffectRefetch
)

// Apply returns the snapshot with ev folded in. Aggregate events replace
// the item's totals with the absolute values they carry, so applying one
// twice, or applying events for different items in any order, gives the
// same result. The input snapshot is never modified.
func Apply(snap Snapshot, ev events.Event) (Snapshot, Effect) {
	switch {
	case ev.CarriesAggregate():
		idx := indexOf(snap.Items, ev.ItemID)
		if idx < 0 {
			return snap, EffectNone
		}
		it := snap.Items[idx]
		if it.ReservedTotal == ev.ReservedTotal && it.ContributorsCount == ev.ContributorsCount {
			return snap, EffectNone
		}
		next := snap.Clone()
		next.Items[idx].ReservedTotal = ev.ReservedTotal
		next.Items[idx].ContributorsCount = ev.ContributorsCount
		return next, EffectNone
	case ev.IsLifecycle():
		return snap, EffectRefetch
	}
	return snap, EffectNone
}

func indexOf(items []models.PublicItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
