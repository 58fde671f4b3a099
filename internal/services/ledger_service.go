package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wishlistai/backend/internal/models"
)

var (
	ErrItemNotFound          = errors.New("item not found")
	ErrItemFullyReserved     = errors.New("item is already fully reserved")
	ErrExceedsPrice          = errors.New("amount exceeds the remaining price")
	ErrContributionsDisabled = errors.New("contributions are disabled for this item")
	ErrStaleFullReservation  = errors.New("full reservation must cover exactly the remaining amount")
	ErrPriceRequired         = errors.New("item has no price and cannot be reserved in full")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
)

// ReserveInput is one reservation or contribution against an item.
type ReserveInput struct {
	WishlistID        string
	ItemID            string
	Amount            int64
	IsFullReservation bool
	GuestName         *string
}

// ReserveResult carries the item's aggregate after the insert.
type ReserveResult struct {
	ReservationID     string
	ItemTitle         string
	ReservedTotal     int64
	ContributorsCount int
}

type lockedItem struct {
	title              string
	price              sql.NullInt64
	allowContributions bool
}

type itemAggregate struct {
	total   int64
	count   int
	hasFull bool
}

// ReservationLedger is the only writer of the reservations table. Every
// write holds the item row lock, so concurrent contributors to one item
// are serialized and the aggregate they see is exact.
type ReservationLedger struct {
	db *sql.DB
}

func NewReservationLedger(db *sql.DB) *ReservationLedger {
	return &ReservationLedger{db: db}
}

func (s *ReservationLedger) Reserve(ctx context.Context, in ReserveInput) (*ReserveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback()

	item, err := s.lockItem(ctx, tx, in.WishlistID, in.ItemID)
	if err != nil {
		return nil, err
	}

	agg, err := s.aggregate(ctx, tx, in.ItemID)
	if err != nil {
		return nil, err
	}

	if err := checkReservation(item, agg, in); err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		ID:                uuid.New().String(),
		ItemID:            in.ItemID,
		Amount:            in.Amount,
		IsFullReservation: in.IsFullReservation,
		GuestName:         in.GuestName,
		CreatedAt:         time.Now(),
	}
	if err := s.insertReservation(ctx, tx, reservation); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}

	return &ReserveResult{
		ReservationID:     reservation.ID,
		ItemTitle:         item.title,
		ReservedTotal:     agg.total + in.Amount,
		ContributorsCount: agg.count + 1,
	}, nil
}

// Aggregate reads an item's current totals without locking.
func (s *ReservationLedger) Aggregate(ctx context.Context, itemID string) (models.ItemAggregate, error) {
	var agg models.ItemAggregate
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM reservations
		WHERE item_id = $1`, itemID).Scan(&agg.ReservedTotal, &agg.ContributorsCount)
	return agg, err
}

func checkReservation(item *lockedItem, agg *itemAggregate, in ReserveInput) error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}

	priceKnown := item.price.Valid && item.price.Int64 > 0
	if agg.hasFull || (priceKnown && agg.total >= item.price.Int64) {
		return ErrItemFullyReserved
	}

	if in.IsFullReservation {
		if !priceKnown {
			return ErrPriceRequired
		}
		if in.Amount != item.price.Int64-agg.total {
			return ErrStaleFullReservation
		}
		return nil
	}

	if !item.allowContributions {
		return ErrContributionsDisabled
	}
	if priceKnown && agg.total+in.Amount > item.price.Int64 {
		return ErrExceedsPrice
	}
	return nil
}

func (s *ReservationLedger) lockItem(ctx context.Context, tx *sql.Tx, wishlistID, itemID string) (*lockedItem, error) {
	var item lockedItem
	err := tx.QueryRowContext(ctx, `
		SELECT title, price, allow_contributions
		FROM items
		WHERE id = $1 AND wishlist_id = $2
		FOR UPDATE`, itemID, wishlistID).Scan(&item.title, &item.price, &item.allowContributions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock item: %w", err)
	}
	return &item, nil
}

func (s *ReservationLedger) aggregate(ctx context.Context, tx *sql.Tx, itemID string) (*itemAggregate, error) {
	var agg itemAggregate
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*), COALESCE(BOOL_OR(is_full_reservation), false)
		FROM reservations
		WHERE item_id = $1`, itemID).Scan(&agg.total, &agg.count, &agg.hasFull)
	if err != nil {
		return nil, fmt.Errorf("aggregate reservations: %w", err)
	}
	return &agg, nil
}

func (s *ReservationLedger) insertReservation(ctx context.Context, tx *sql.Tx, r *models.Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (id, item_id, amount, is_full_reservation, guest_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ItemID, r.Amount, r.IsFullReservation, r.GuestName, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}
