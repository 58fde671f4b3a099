package audit

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Event is one audit record. It never names who reserved or contributed.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	WishlistID string    `json:"wishlist_id"`
	ItemID     string    `json:"item_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

type Logger struct {
	out *log.Logger
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stderr)
}

func NewLoggerTo(w io.Writer) *Logger {
	return &Logger{out: log.New(w, "", log.LstdFlags)}
}

func (a *Logger) LogReservation(wishlistID, itemID string, amount int64, full bool, reservedTotal int64, contributors int) {
	eventType := "CONTRIBUTION"
	if full {
		eventType = "FULL_RESERVATION"
	}
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		WishlistID: wishlistID,
		ItemID:     itemID,
		Amount:     amount,
		Status:     "SUCCESS",
		Details: map[string]int64{
			"reserved_total":     reservedTotal,
			"contributors_count": int64(contributors),
		},
	})
}

func (a *Logger) LogRejected(wishlistID, itemID string, amount int64, reason error) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  "RESERVATION",
		WishlistID: wishlistID,
		ItemID:     itemID,
		Amount:     amount,
		Status:     "REJECTED",
		Details:    map[string]string{"reason": reason.Error()},
	})
}

// LogOperation records an owner action on a list or item.
func (a *Logger) LogOperation(wishlistID, itemID, operation string) {
	a.log(Event{
		Timestamp:  time.Now(),
		EventType:  operation,
		WishlistID: wishlistID,
		ItemID:     itemID,
		Status:     "SUCCESS",
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	a.out.Printf("AUDIT: %s", string(data))
}
