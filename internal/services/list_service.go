package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wishlistai/backend/internal/audit"
	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/models"
)

var ErrNotOwner = errors.New("not your wishlist")

const slugAttempts = 3

type CreateWishlistRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// UpdateWishlistRequest only changes the fields that are present.
type UpdateWishlistRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// ListService is the owner's wishlist CRUD.
type ListService struct {
	db        *sql.DB
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewListService(db *sql.DB, auditLogger *audit.Logger) *ListService {
	return &ListService{db: db, audit: auditLogger, validator: NewValidationHelper()}
}

// ListWishlists lists the caller's wishlists
// @Summary My wishlists
// @Tags wishlists
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.WishlistSummary
// @Failure 401 {object} ErrorResponse
// @Router /wishlists [get]
func (s *ListService) ListWishlists(w http.ResponseWriter, r *http.Request) {
	userID := mW.UserID(r)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT w.id, w.owner_id, w.title, w.description, w.public_slug, w.deadline, w.created_at, COUNT(i.id)
		FROM wishlists w
		LEFT JOIN items i ON i.wishlist_id = w.id
		WHERE w.owner_id = $1
		GROUP BY w.id
		ORDER BY w.created_at DESC`, userID)
	if err != nil {
		log.Printf("[WISHLIST] list for %s failed: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch wishlists", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	out := []models.WishlistSummary{}
	for rows.Next() {
		var ws models.WishlistSummary
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.Title, &ws.Description, &ws.PublicSlug, &ws.Deadline, &ws.CreatedAt, &ws.ItemsCount); err != nil {
			SendErrorResponse(w, "Failed to fetch wishlists", http.StatusInternalServerError, nil)
			return
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch wishlists", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, out)
}

// CreateWishlist creates a wishlist with a fresh public slug
// @Summary Create wishlist
// @Tags wishlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateWishlistRequest true "Wishlist"
// @Success 201 {object} models.Wishlist
// @Failure 400 {object} ErrorResponse
// @Router /wishlists [post]
func (s *ListService) CreateWishlist(w http.ResponseWriter, r *http.Request) {
	userID := mW.UserID(r)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateWishlistRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	wl := &models.Wishlist{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		CreatedAt:   time.Now(),
	}
	if err := s.insertWishlist(r.Context(), wl); err != nil {
		log.Printf("[WISHLIST] create for %s failed: %v", userID, err)
		SendErrorResponse(w, "Failed to create wishlist", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(wl.ID, "", "WISHLIST_CREATED")
	SendJSON(w, http.StatusCreated, wl)
}

// GetWishlist returns an owned wishlist with its items and totals
// @Summary Get wishlist
// @Tags wishlists
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Success 200 {object} models.PublicWishlist
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /wishlists/{id} [get]
func (s *ListService) GetWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := s.requireOwned(w, r)
	if !ok {
		return
	}

	items, err := loadPublicItems(r.Context(), s.db, wl.ID)
	if err != nil {
		log.Printf("[WISHLIST] items for %s failed: %v", wl.ID, err)
		SendErrorResponse(w, "Failed to fetch wishlist", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, models.PublicWishlist{
		ID:          wl.ID,
		OwnerID:     wl.OwnerID,
		Title:       wl.Title,
		Description: wl.Description,
		PublicSlug:  wl.PublicSlug,
		Deadline:    wl.Deadline,
		CreatedAt:   wl.CreatedAt,
		Items:       items,
	})
}

// UpdateWishlist changes title, description or deadline
// @Summary Update wishlist
// @Tags wishlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Param request body UpdateWishlistRequest true "Changes"
// @Success 200 {object} models.Wishlist
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /wishlists/{id} [patch]
func (s *ListService) UpdateWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := s.requireOwned(w, r)
	if !ok {
		return
	}

	var req UpdateWishlistRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	updated, err := scanWishlist(s.db.QueryRowContext(r.Context(), `
		UPDATE wishlists
		SET title = COALESCE($1, title),
			description = COALESCE($2, description),
			deadline = COALESCE($3, deadline)
		WHERE id = $4
		RETURNING `+wishlistColumns, req.Title, req.Description, req.Deadline, wl.ID))
	if err != nil {
		log.Printf("[WISHLIST] update %s failed: %v", wl.ID, err)
		SendErrorResponse(w, "Failed to update wishlist", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(wl.ID, "", "WISHLIST_UPDATED")
	SendJSON(w, http.StatusOK, updated)
}

// DeleteWishlist deletes an owned wishlist with its items and reservations
// @Summary Delete wishlist
// @Tags wishlists
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /wishlists/{id} [delete]
func (s *ListService) DeleteWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := s.requireOwned(w, r)
	if !ok {
		return
	}

	if _, err := s.db.ExecContext(r.Context(), `DELETE FROM wishlists WHERE id = $1 AND owner_id = $2`, wl.ID, wl.OwnerID); err != nil {
		log.Printf("[WISHLIST] delete %s failed: %v", wl.ID, err)
		SendErrorResponse(w, "Failed to delete wishlist", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(wl.ID, "", "WISHLIST_DELETED")
	w.WriteHeader(http.StatusNoContent)
}

func (s *ListService) requireOwned(w http.ResponseWriter, r *http.Request) (*models.Wishlist, bool) {
	return requireOwnedWishlist(w, r, s.db)
}

func (s *ListService) insertWishlist(ctx context.Context, wl *models.Wishlist) error {
	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug, err := GenerateSlug()
		if err != nil {
			return err
		}
		wl.PublicSlug = slug

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO wishlists (id, owner_id, title, description, public_slug, deadline, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			wl.ID, wl.OwnerID, wl.Title, wl.Description, wl.PublicSlug, wl.Deadline, wl.CreatedAt)
		if err == nil {
			return nil
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "wishlists_public_slug_key" {
			continue
		}
		return err
	}
	return fmt.Errorf("no unique slug after %d attempts", slugAttempts)
}

// GenerateSlug returns an unguessable URL-safe public slug.
func GenerateSlug() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// requireOwnedWishlist loads the {id} wishlist and checks that the caller
// owns it, writing the error response when not.
func requireOwnedWishlist(w http.ResponseWriter, r *http.Request, db *sql.DB) (*models.Wishlist, bool) {
	userID := mW.UserID(r)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}
	wishlistID, ok := uuidParam(r, "id")
	if !ok {
		SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return nil, false
	}

	wl, err := ownedWishlist(r.Context(), db, wishlistID, userID)
	switch {
	case errors.Is(err, ErrWishlistNotFound):
		SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return nil, false
	case errors.Is(err, ErrNotOwner):
		SendErrorResponse(w, "Not your wishlist", http.StatusForbidden, nil)
		return nil, false
	case err != nil:
		log.Printf("[WISHLIST] load %s failed: %v", wishlistID, err)
		SendErrorResponse(w, "Failed to fetch wishlist", http.StatusInternalServerError, nil)
		return nil, false
	}
	return wl, true
}

func ownedWishlist(ctx context.Context, db *sql.DB, wishlistID, userID string) (*models.Wishlist, error) {
	wl, err := scanWishlist(db.QueryRowContext(ctx,
		`SELECT `+wishlistColumns+` FROM wishlists WHERE id = $1`, wishlistID))
	if err != nil {
		return nil, err
	}
	if wl.OwnerID != userID {
		return nil, ErrNotOwner
	}
	return wl, nil
}
