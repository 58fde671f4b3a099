package models

import "time"

// Reservation is a full or partial claim against an item's price.
// Amount is in minor currency units.
type Reservation struct {
	ID                string    `json:"id" db:"id"`
	ItemID            string    `json:"item_id" db:"item_id"`
	Amount            int64     `json:"amount" db:"amount"`
	IsFullReservation bool      `json:"is_full_reservation" db:"is_full_reservation"`
	GuestName         *string   `json:"guest_name,omitempty" db:"guest_name"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// ItemAggregate is the derived funding state of one item.
type ItemAggregate struct {
	ReservedTotal     int64 `json:"reserved_total" db:"reserved_total"`
	ContributorsCount int   `json:"contributors_count" db:"contributors_count"`
}
