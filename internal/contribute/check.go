// Package contribute validates and submits reservations and contributions.
// It never mutates the view: the resulting totals arrive on the event
// channel like everyone else's.
package contribute

import (
	"errors"
	"fmt"

	"github.com/wishlistai/backend/internal/models"
)

var (
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrContributionsDisabled = errors.New("contributions are disabled for this item")
	ErrPriceUnknown          = errors.New("item has no price; it cannot be reserved in full")
	ErrFullyReserved         = errors.New("item is already fully reserved")
)

// ExceedsRemainingError rejects a contribution larger than what is left.
type ExceedsRemainingError struct {
	Remaining int64
}

func (e *ExceedsRemainingError) Error() string {
	return fmt.Sprintf("amount exceeds the remaining %d", e.Remaining)
}

// RejectedError is the ledger refusing a write that passed the local
// checks, typically because the item moved on in the meantime. It is
// recoverable: the view stays as it was.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected by server (%d)", e.Status)
	}
	return e.Message
}

// Request describes one write against the item state the viewer last saw.
type Request struct {
	Price              *int64
	ReservedTotal      int64
	AllowContributions bool

	Amount            int64
	IsFullReservation bool
	GuestName         string
}

// ForItem builds a request from the item's current view. A full
// reservation always claims exactly the remaining amount.
func ForItem(item models.PublicItem, amount int64, full bool, guestName string) Request {
	req := Request{
		Price:              item.Price,
		ReservedTotal:      item.ReservedTotal,
		AllowContributions: item.AllowContributions,
		Amount:             amount,
		IsFullReservation:  full,
		GuestName:          guestName,
	}
	if full {
		if rem, ok := item.Remaining(); ok {
			req.Amount = rem
		}
	}
	return req
}

// Check runs the advisory guardrails. The ledger re-checks everything.
func Check(r Request) error {
	priceKnown := r.Price != nil && *r.Price > 0

	if r.IsFullReservation {
		if !priceKnown {
			return ErrPriceUnknown
		}
		if r.ReservedTotal >= *r.Price {
			return ErrFullyReserved
		}
		return nil
	}

	if r.Amount <= 0 {
		return ErrNonPositiveAmount
	}
	if !r.AllowContributions {
		return ErrContributionsDisabled
	}
	if priceKnown && r.ReservedTotal+r.Amount > *r.Price {
		return &ExceedsRemainingError{Remaining: max(*r.Price-r.ReservedTotal, 0)}
	}
	return nil
}
