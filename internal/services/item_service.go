package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wishlistai/backend/internal/audit"
	"github.com/wishlistai/backend/internal/events"
	"github.com/wishlistai/backend/internal/models"
)

var (
	ErrNotPermutation     = errors.New("item_ids must list every item of the wishlist exactly once")
	ErrPriceBelowReserved = errors.New("price cannot drop below the amount already reserved")
)

const itemColumns = `id, wishlist_id, sort_order, title, price, image_url, product_url, allow_contributions, created_at`

type CreateItemRequest struct {
	Title              string  `json:"title" validate:"required,max=300"`
	Price              *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	ImageURL           *string `json:"image_url,omitempty" validate:"omitempty,url"`
	ProductURL         *string `json:"product_url,omitempty" validate:"omitempty,url"`
	AllowContributions *bool   `json:"allow_contributions,omitempty"`
}

// UpdateItemRequest only changes the fields that are present.
type UpdateItemRequest struct {
	Title              *string `json:"title,omitempty" validate:"omitempty,min=1,max=300"`
	Price              *int64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	ImageURL           *string `json:"image_url,omitempty" validate:"omitempty,url"`
	ProductURL         *string `json:"product_url,omitempty" validate:"omitempty,url"`
	AllowContributions *bool   `json:"allow_contributions,omitempty"`
}

// ReorderRequest replaces the display order in bulk.
type ReorderRequest struct {
	ItemIDs []string `json:"item_ids" validate:"required,dive,uuid"`
}

// ItemService is the owner's item CRUD. Every change is announced on the
// wishlist's event channel so open viewers refetch.
type ItemService struct {
	db        *sql.DB
	ledger    *ReservationLedger
	publisher Publisher
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewItemService(db *sql.DB, ledger *ReservationLedger, publisher Publisher, auditLogger *audit.Logger) *ItemService {
	return &ItemService{db: db, ledger: ledger, publisher: publisher, audit: auditLogger, validator: NewValidationHelper()}
}

// CreateItem appends an item to a wishlist
// @Summary Create item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Param request body CreateItemRequest true "Item"
// @Success 201 {object} models.Item
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /wishlists/{id}/items [post]
func (s *ItemService) CreateItem(w http.ResponseWriter, r *http.Request) {
	wl, ok := requireOwnedWishlist(w, r, s.db)
	if !ok {
		return
	}

	var req CreateItemRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	item := &models.Item{
		ID:                 uuid.New().String(),
		WishlistID:         wl.ID,
		Title:              strings.TrimSpace(req.Title),
		Price:              req.Price,
		ImageURL:           req.ImageURL,
		ProductURL:         req.ProductURL,
		AllowContributions: req.AllowContributions == nil || *req.AllowContributions,
		CreatedAt:          time.Now(),
	}

	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO items (id, wishlist_id, sort_order, title, price, image_url, product_url, allow_contributions, created_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM items WHERE wishlist_id = $2), $3, $4, $5, $6, $7, $8)`,
		item.ID, item.WishlistID, item.Title, item.Price, item.ImageURL, item.ProductURL, item.AllowContributions, item.CreatedAt)
	if err != nil {
		log.Printf("[ITEM] create in %s failed: %v", wl.ID, err)
		SendErrorResponse(w, "Failed to create item", http.StatusInternalServerError, nil)
		return
	}

	created, err := s.fetchItem(r.Context(), wl.ID, item.ID)
	if err != nil {
		created = item
	}

	s.announce(r.Context(), wl.ID, events.Lifecycle(events.ItemCreated, item.ID))
	s.audit.LogOperation(wl.ID, item.ID, "ITEM_CREATED")
	SendJSON(w, http.StatusCreated, created)
}

// UpdateItem changes an item
// @Summary Update item
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Param itemId path string true "Item ID"
// @Param request body UpdateItemRequest true "Changes"
// @Success 200 {object} models.Item
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /wishlists/{id}/items/{itemId} [patch]
func (s *ItemService) UpdateItem(w http.ResponseWriter, r *http.Request) {
	wl, ok := requireOwnedWishlist(w, r, s.db)
	if !ok {
		return
	}
	itemID, ok := uuidParam(r, "itemId")
	if !ok {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	var req UpdateItemRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	if req.Price != nil {
		agg, err := s.ledger.Aggregate(r.Context(), itemID)
		if err != nil {
			log.Printf("[ITEM] aggregate for %s failed: %v", itemID, err)
			SendErrorResponse(w, "Failed to update item", http.StatusInternalServerError, nil)
			return
		}
		if *req.Price < agg.ReservedTotal {
			SendErrorResponse(w, ErrPriceBelowReserved.Error(), http.StatusConflict, nil)
			return
		}
	}

	item, err := scanItem(s.db.QueryRowContext(r.Context(), `
		UPDATE items
		SET title = COALESCE($1, title),
			price = COALESCE($2, price),
			image_url = COALESCE($3, image_url),
			product_url = COALESCE($4, product_url),
			allow_contributions = COALESCE($5, allow_contributions)
		WHERE id = $6 AND wishlist_id = $7
		RETURNING `+itemColumns,
		req.Title, req.Price, req.ImageURL, req.ProductURL, req.AllowContributions, itemID, wl.ID))
	if errors.Is(err, ErrItemNotFound) {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ITEM] update %s failed: %v", itemID, err)
		SendErrorResponse(w, "Failed to update item", http.StatusInternalServerError, nil)
		return
	}

	s.announce(r.Context(), wl.ID, events.Lifecycle(events.ItemUpdated, itemID))
	s.audit.LogOperation(wl.ID, itemID, "ITEM_UPDATED")
	SendJSON(w, http.StatusOK, item)
}

// DeleteItem removes an item and its reservations
// @Summary Delete item
// @Tags items
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Param itemId path string true "Item ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /wishlists/{id}/items/{itemId} [delete]
func (s *ItemService) DeleteItem(w http.ResponseWriter, r *http.Request) {
	wl, ok := requireOwnedWishlist(w, r, s.db)
	if !ok {
		return
	}
	itemID, ok := uuidParam(r, "itemId")
	if !ok {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `DELETE FROM items WHERE id = $1 AND wishlist_id = $2`, itemID, wl.ID)
	if err != nil {
		log.Printf("[ITEM] delete %s failed: %v", itemID, err)
		SendErrorResponse(w, "Failed to delete item", http.StatusInternalServerError, nil)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		SendErrorResponse(w, "Item not found", http.StatusNotFound, nil)
		return
	}

	s.announce(r.Context(), wl.ID, events.Lifecycle(events.ItemDeleted, itemID))
	s.audit.LogOperation(wl.ID, itemID, "ITEM_DELETED")
	w.WriteHeader(http.StatusNoContent)
}

// ReorderItems replaces the display order of a wishlist's items
// @Summary Reorder items
// @Description item_ids must name every item of the wishlist exactly once; position in the array becomes sort_order.
// @Tags items
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Param request body ReorderRequest true "New order"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Router /wishlists/{id}/items/reorder [patch]
func (s *ItemService) ReorderItems(w http.ResponseWriter, r *http.Request) {
	wl, ok := requireOwnedWishlist(w, r, s.db)
	if !ok {
		return
	}

	var req ReorderRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	moved, err := s.reorder(r.Context(), wl.ID, req.ItemIDs)
	if errors.Is(err, ErrNotPermutation) {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[ITEM] reorder %s failed: %v", wl.ID, err)
		SendErrorResponse(w, "Failed to reorder items", http.StatusInternalServerError, nil)
		return
	}

	for _, id := range moved {
		s.announce(r.Context(), wl.ID, events.Lifecycle(events.ItemUpdated, id))
	}
	s.audit.LogOperation(wl.ID, "", "ITEMS_REORDERED")
	SendJSON(w, http.StatusOK, map[string]any{"success": true})
}

// reorder writes the new order and returns the ids whose position changed.
func (s *ItemService) reorder(ctx context.Context, wishlistID string, itemIDs []string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, sort_order FROM items WHERE wishlist_id = $1 FOR UPDATE`, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	current := map[string]int{}
	for rows.Next() {
		var id string
		var order int
		if err := rows.Scan(&id, &order); err != nil {
			rows.Close()
			return nil, err
		}
		current[id] = order
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	normalized, ok := permutationOf(current, itemIDs)
	if !ok {
		return nil, ErrNotPermutation
	}

	var moved []string
	for pos, id := range normalized {
		if current[id] == pos {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE items SET sort_order = $1 WHERE id = $2 AND wishlist_id = $3`, pos, id, wishlistID); err != nil {
			return nil, fmt.Errorf("update sort_order: %w", err)
		}
		moved = append(moved, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return moved, nil
}

// permutationOf reports whether ids names every key of current exactly
// once, returning the ids in canonical form.
func permutationOf(current map[string]int, ids []string) ([]string, bool) {
	if len(ids) != len(current) {
		return nil, false
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, false
		}
		id := parsed.String()
		if _, ok := current[id]; !ok || seen[id] {
			return nil, false
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, true
}

func (s *ItemService) fetchItem(ctx context.Context, wishlistID, itemID string) (*models.Item, error) {
	return scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND wishlist_id = $2`, itemID, wishlistID))
}

func (s *ItemService) announce(ctx context.Context, wishlistID string, ev events.Event) {
	publishEvent(context.WithoutCancel(ctx), s.publisher, wishlistID, ev)
}

func scanItem(row rowScanner) (*models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.WishlistID, &it.SortOrder, &it.Title, &it.Price, &it.ImageURL, &it.ProductURL, &it.AllowContributions, &it.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &it, nil
}
