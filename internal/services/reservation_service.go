package services

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/blake2b"

	"github.com/wishlistai/backend/internal/audit"
	"github.com/wishlistai/backend/internal/events"
)

var ErrRateLimited = errors.New("too many reservations, try again later")

// ReservationRequest is the public reservation body. A full reservation
// must claim exactly the remaining amount.
type ReservationRequest struct {
	Amount            int64   `json:"amount" validate:"required,gt=0"`
	IsFullReservation bool    `json:"is_full_reservation"`
	GuestName         *string `json:"guest_name,omitempty" validate:"omitempty,max=100"`
}

type ReservationConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// ReservationService accepts anonymous reservations and contributions.
type ReservationService struct {
	ledger    *ReservationLedger
	redis     *redis.Client
	publisher Publisher
	notifier  Notifier
	audit     *audit.Logger
	validator *ValidationHelper
	config    ReservationConfig
}

func NewReservationService(ledger *ReservationLedger, redis *redis.Client, publisher Publisher, notifier Notifier, auditLogger *audit.Logger, config ReservationConfig) *ReservationService {
	if config.RateLimit <= 0 {
		config.RateLimit = 20
	}
	if config.RateWindow <= 0 {
		config.RateWindow = 10 * time.Minute
	}
	return &ReservationService{
		ledger:    ledger,
		redis:     redis,
		publisher: publisher,
		notifier:  notifier,
		audit:     auditLogger,
		validator: NewValidationHelper(),
		config:    config,
	}
}

// CreateReservation reserves an item in full or adds a contribution
// @Summary Reserve or contribute
// @Description Anonymous write against an item. The response carries no totals; they are broadcast on the wishlist's event channel.
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "Wishlist ID"
// @Param itemId path string true "Item ID"
// @Param request body ReservationRequest true "Reservation"
// @Success 201 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /wishlists/{id}/items/{itemId}/reservations [post]
func (s *ReservationService) CreateReservation(w http.ResponseWriter, r *http.Request) {
	wishlistID, ok := uuidParam(r, "id")
	if !ok {
		SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	}
	itemID, ok := uuidParam(r, "itemId")
	if !ok {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	clientIP := clientIP(r)
	if err := s.checkRateLimit(r.Context(), clientIP); err != nil {
		if errors.Is(err, ErrRateLimited) {
			SendErrorResponse(w, err.Error(), http.StatusTooManyRequests, nil)
			return
		}
		log.Printf("[RESERVATION] rate limit check failed, allowing: %v", err)
	}

	var req ReservationRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.GuestName != nil {
		name := strings.TrimSpace(*req.GuestName)
		if name == "" {
			req.GuestName = nil
		} else {
			req.GuestName = &name
		}
	}

	res, err := s.ledger.Reserve(r.Context(), ReserveInput{
		WishlistID:        wishlistID,
		ItemID:            itemID,
		Amount:            req.Amount,
		IsFullReservation: req.IsFullReservation,
		GuestName:         req.GuestName,
	})
	if err != nil {
		code, msg := reservationErrorStatus(err)
		if code == http.StatusInternalServerError {
			log.Printf("[RESERVATION] reserve failed for item %s: %v", itemID, err)
		} else {
			s.audit.LogRejected(wishlistID, itemID, req.Amount, err)
		}
		SendErrorResponse(w, msg, code, nil)
		return
	}

	s.incrementRateLimit(r.Context(), clientIP)

	eventType := events.ContributionAdded
	if req.IsFullReservation {
		eventType = events.ItemReserved
	}
	// The request context ends with the response; the broadcast must not.
	ctx := context.WithoutCancel(r.Context())
	publishEvent(ctx, s.publisher, wishlistID, events.ItemState(eventType, itemID, res.ReservedTotal, res.ContributorsCount))
	s.audit.LogReservation(wishlistID, itemID, req.Amount, req.IsFullReservation, res.ReservedTotal, res.ContributorsCount)

	if s.notifier != nil {
		go s.notifier.NotifyReservation(ctx, wishlistID, res.ItemTitle, req.IsFullReservation)
	}

	SendJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func reservationErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, ErrItemFullyReserved):
		return http.StatusConflict, "Item is already fully reserved"
	case errors.Is(err, ErrExceedsPrice):
		return http.StatusConflict, "Amount exceeds the remaining price"
	case errors.Is(err, ErrStaleFullReservation):
		return http.StatusConflict, "The remaining amount changed; refresh and try again"
	case errors.Is(err, ErrContributionsDisabled):
		return http.StatusBadRequest, "Contributions are disabled for this item"
	case errors.Is(err, ErrPriceRequired):
		return http.StatusBadRequest, "Item has no price and cannot be reserved in full"
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest, "Amount must be greater than zero"
	}
	return http.StatusInternalServerError, "Failed to create reservation"
}

func (s *ReservationService) checkRateLimit(ctx context.Context, clientIP string) error {
	if s.redis == nil {
		return nil
	}
	count, err := s.redis.Get(ctx, rateLimitKey(clientIP)).Int()
	if err != nil && err != redis.Nil {
		return err
	}
	if count >= s.config.RateLimit {
		return ErrRateLimited
	}
	return nil
}

func (s *ReservationService) incrementRateLimit(ctx context.Context, clientIP string) {
	if s.redis == nil {
		return
	}
	key := rateLimitKey(clientIP)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.RateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RESERVATION] rate limit increment failed: %v", err)
	}
}

// rateLimitKey keeps raw guest addresses out of Redis.
func rateLimitKey(clientIP string) string {
	sum := blake2b.Sum256([]byte(clientIP))
	return "reserve:ratelimit:" + hex.EncodeToString(sum[:16])
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
