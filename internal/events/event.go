// Package events defines the JSON frames pushed over a wishlist's event
// channel. Payload-bearing frames always carry absolute aggregates, never
// deltas; receivers rely on that to apply them idempotently.
package events

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

type Type string

const (
	ItemReserved      Type = "item_reserved"
	ContributionAdded Type = "contribution_added"
	ItemCreated       Type = "item_created"
	ItemUpdated       Type = "item_updated"
	ItemDeleted       Type = "item_deleted"
	Pong              Type = "pong"
)

// ProbeFrame is the opaque liveness probe a client sends. It is not JSON.
const ProbeFrame = "ping"

// Event is one frame of the event channel. ReservedTotal and
// ContributorsCount are only meaningful for item_reserved and
// contribution_added.
type Event struct {
	Type              Type   `json:"type"`
	ItemID            string `json:"item_id,omitempty"`
	ReservedTotal     int64  `json:"reserved_total,omitempty"`
	ContributorsCount int    `json:"contributors_count,omitempty"`
}

// CarriesAggregate reports whether the event embeds absolute item state.
func (e Event) CarriesAggregate() bool {
	return carriesAggregate(e.Type)
}

// IsLifecycle reports whether the event only names an item whose state
// must be refetched.
func (e Event) IsLifecycle() bool {
	switch e.Type {
	case ItemCreated, ItemUpdated, ItemDeleted:
		return true
	}
	return false
}

func carriesAggregate(t Type) bool {
	return t == ItemReserved || t == ContributionAdded
}

// frame is the wire form of an Event. The totals are pointers so that a
// missing field can be told apart from a zero one.
type frame struct {
	Type              Type   `json:"type" validate:"required"`
	ItemID            string `json:"item_id,omitempty" validate:"required_unless=Type pong"`
	ReservedTotal     *int64 `json:"reserved_total,omitempty" validate:"omitempty,gte=0"`
	ContributorsCount *int   `json:"contributors_count,omitempty" validate:"omitempty,gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateFrame, frame{})
	return v
}

// validateFrame requires both totals on the aggregate kinds. A frame
// without them would otherwise read as zero and wipe the item's state.
func validateFrame(sl validator.StructLevel) {
	f := sl.Current().Interface().(frame)
	if !carriesAggregate(f.Type) {
		return
	}
	if f.ReservedTotal == nil {
		sl.ReportError(f.ReservedTotal, "ReservedTotal", "reserved_total", "required", "")
	}
	if f.ContributorsCount == nil {
		sl.ReportError(f.ContributorsCount, "ContributorsCount", "contributors_count", "required", "")
	}
}

// Parse decodes a frame. ok is false for anything that is not a
// structurally valid event; callers drop such frames silently.
func Parse(data []byte) (ev Event, ok bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, false
	}
	if err := validate.Struct(&f); err != nil {
		return Event{}, false
	}
	ev = Event{Type: f.Type, ItemID: f.ItemID}
	if f.ReservedTotal != nil {
		ev.ReservedTotal = *f.ReservedTotal
	}
	if f.ContributorsCount != nil {
		ev.ContributorsCount = *f.ContributorsCount
	}
	return ev, true
}

// Encode marshals an event for the wire. Aggregate kinds always carry both
// totals, zero included.
func Encode(ev Event) ([]byte, error) {
	f := frame{Type: ev.Type, ItemID: ev.ItemID}
	if carriesAggregate(ev.Type) {
		f.ReservedTotal = &ev.ReservedTotal
		f.ContributorsCount = &ev.ContributorsCount
	}
	return json.Marshal(f)
}

func ItemState(t Type, itemID string, reservedTotal int64, contributorsCount int) Event {
	return Event{Type: t, ItemID: itemID, ReservedTotal: reservedTotal, ContributorsCount: contributorsCount}
}

func Lifecycle(t Type, itemID string) Event {
	return Event{Type: t, ItemID: itemID}
}
