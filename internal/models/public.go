package models

import "time"

// PublicItem is an item as seen through the public slug: item fields plus
// the aggregate, never the contributors.
type PublicItem struct {
	Item
	ReservedTotal     int64 `json:"reserved_total"`
	ContributorsCount int   `json:"contributors_count"`
}

// Remaining returns the amount still open for funding and whether the
// price is known.
func (i PublicItem) Remaining() (int64, bool) {
	if i.Price == nil {
		return 0, false
	}
	rem := *i.Price - i.ReservedTotal
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

// FullyReserved reports the terminal state: price known and reached.
func (i PublicItem) FullyReserved() bool {
	return i.Price != nil && *i.Price > 0 && i.ReservedTotal >= *i.Price
}

// PublicWishlist is the snapshot returned by the by-slug read.
type PublicWishlist struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	PublicSlug  string       `json:"public_slug"`
	Deadline    *time.Time   `json:"deadline"`
	CreatedAt   time.Time    `json:"created_at"`
	Items       []PublicItem `json:"items"`
}

// Clone returns a deep copy of the item slice so snapshots can be shared
// between goroutines without aliasing.
func (w PublicWishlist) Clone() PublicWishlist {
	out := w
	out.Items = make([]PublicItem, len(w.Items))
	copy(out.Items, w.Items)
	return out
}
