package contribute

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/wishlistai/backend/internal/api"
)

// ErrClosed is returned for writes attempted or completed after Close.
var ErrClosed = errors.New("contribution session closed")

// ReservationWriter performs the reservation write. *api.Client is one.
type ReservationWriter interface {
	CreateReservation(ctx context.Context, listID, itemID string, req api.ReservationRequest) error
}

// Submitter sends contributions for one viewing session.
type Submitter struct {
	writer ReservationWriter

	mu     sync.Mutex
	closed bool
}

func NewSubmitter(writer ReservationWriter) *Submitter {
	return &Submitter{writer: writer}
}

// Submit checks req and performs exactly one write. Resubmitting after a
// failure may record the contribution twice if the first write did land.
func (s *Submitter) Submit(ctx context.Context, listID, itemID string, req Request) error {
	if err := Check(req); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}

	body := api.ReservationRequest{Amount: req.Amount, IsFullReservation: req.IsFullReservation}
	if name := strings.TrimSpace(req.GuestName); name != "" {
		body.GuestName = &name
	}

	err := s.writer.CreateReservation(ctx, listID, itemID, body)
	if s.isClosed() {
		return ErrClosed
	}
	if err == nil {
		return nil
	}

	var se *api.StatusError
	if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
		return &RejectedError{Status: se.Code, Message: se.Message}
	}
	return err
}

// Close ends the session. Writes already in flight run to completion but
// their outcome is reported as ErrClosed.
func (s *Submitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Submitter) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
