package contribute

import (
	"errors"

	"github.com/wishlistai/backend/internal/models"
)

// Phase is where an item's contribution flow stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelectingAction
	PhaseEnteringDetails
	PhaseSubmitting
	PhaseSettled
	PhaseFullyReserved
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelectingAction:
		return "selecting-action"
	case PhaseEnteringDetails:
		return "entering-details"
	case PhaseSubmitting:
		return "submitting"
	case PhaseSettled:
		return "settled"
	case PhaseFullyReserved:
		return "fully-reserved"
	}
	return "unknown"
}

var ErrInvalidTransition = errors.New("invalid contribution flow transition")

// ItemUI tracks the contribution flow of one item. PhaseFullyReserved is
// derived from the item itself and overrides everything but an in-flight
// submit.
type ItemUI struct {
	phase   Phase
	full    bool
	LastErr error
}

// Phase returns the effective phase given the item's current state.
func (u *ItemUI) Phase(item models.PublicItem) Phase {
	if item.FullyReserved() && u.phase != PhaseSubmitting {
		return PhaseFullyReserved
	}
	return u.phase
}

// Full reports whether the chosen action is a full reservation.
func (u *ItemUI) Full() bool { return u.full }

func (u *ItemUI) Open(item models.PublicItem) error {
	switch u.Phase(item) {
	case PhaseFullyReserved:
		return ErrFullyReserved
	case PhaseIdle, PhaseSettled:
		u.phase = PhaseSelectingAction
		u.LastErr = nil
		return nil
	}
	return ErrInvalidTransition
}

// Choose picks full reservation or partial contribution.
func (u *ItemUI) Choose(item models.PublicItem, full bool) error {
	switch u.Phase(item) {
	case PhaseFullyReserved:
		return ErrFullyReserved
	case PhaseSelectingAction:
	default:
		return ErrInvalidTransition
	}
	if full && (item.Price == nil || *item.Price <= 0) {
		return ErrPriceUnknown
	}
	if !full && !item.AllowContributions {
		return ErrContributionsDisabled
	}
	u.full = full
	u.phase = PhaseEnteringDetails
	return nil
}

func (u *ItemUI) BeginSubmit(item models.PublicItem) error {
	switch u.Phase(item) {
	case PhaseFullyReserved:
		return ErrFullyReserved
	case PhaseEnteringDetails:
		u.phase = PhaseSubmitting
		return nil
	}
	return ErrInvalidTransition
}

// Finish records the outcome of a submit. A failure returns to the
// details form with the error kept for display.
func (u *ItemUI) Finish(err error) {
	if u.phase != PhaseSubmitting {
		return
	}
	if err != nil {
		u.LastErr = err
		u.phase = PhaseEnteringDetails
		return
	}
	u.LastErr = nil
	u.phase = PhaseSettled
}

// Cancel abandons the flow. It has no effect while a submit is in flight.
func (u *ItemUI) Cancel() {
	if u.phase == PhaseSubmitting {
		return
	}
	u.phase = PhaseIdle
	u.full = false
	u.LastErr = nil
}
