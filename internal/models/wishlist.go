package models

import (
	"time"
)

// Wishlist is a named collection of items owned by one user and exposed
// publicly through an opaque slug.
type Wishlist struct {
	ID          string     `json:"id" db:"id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description" db:"description"`
	PublicSlug  string     `json:"public_slug" db:"public_slug"`
	Deadline    *time.Time `json:"deadline" db:"deadline"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// WishlistSummary is the owner's list view row.
type WishlistSummary struct {
	Wishlist
	ItemsCount int `json:"items_count" db:"items_count"`
}

// Item is a single desired product in a wishlist. Price is in minor
// currency units; nil means the price is unknown.
type Item struct {
	ID                 string    `json:"id" db:"id"`
	WishlistID         string    `json:"wishlist_id" db:"wishlist_id"`
	SortOrder          int       `json:"sort_order" db:"sort_order"`
	Title              string    `json:"title" db:"title"`
	Price              *int64    `json:"price" db:"price"`
	ImageURL           *string   `json:"image_url" db:"image_url"`
	ProductURL         *string   `json:"product_url" db:"product_url"`
	AllowContributions bool      `json:"allow_contributions" db:"allow_contributions"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
