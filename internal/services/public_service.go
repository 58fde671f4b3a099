package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wishlistai/backend/internal/models"
)

var ErrWishlistNotFound = errors.New("wishlist not found")

const wishlistColumns = `id, owner_id, title, description, public_slug, deadline, created_at`

// PublicService serves the anonymous by-slug read.
type PublicService struct {
	db *sql.DB
}

func NewPublicService(db *sql.DB) *PublicService {
	return &PublicService{db: db}
}

// GetWishlistBySlug returns the public snapshot of a wishlist
// @Summary Public wishlist
// @Description Wishlist and its items in display order, each with reserved_total and contributors_count. Never names contributors.
// @Tags public
// @Produce json
// @Param slug path string true "Public slug"
// @Success 200 {object} models.PublicWishlist
// @Failure 404 {object} ErrorResponse
// @Router /public/wishlists/by-slug/{slug} [get]
func (s *PublicService) GetWishlistBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	}

	snap, err := s.Snapshot(r.Context(), slug)
	if errors.Is(err, ErrWishlistNotFound) {
		SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PUBLIC] snapshot for %s failed: %v", slug, err)
		SendErrorResponse(w, "Failed to load wishlist", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, snap)
}

// Snapshot reads the wishlist behind slug with its items and aggregates.
func (s *PublicService) Snapshot(ctx context.Context, slug string) (*models.PublicWishlist, error) {
	wl, err := scanWishlist(s.db.QueryRowContext(ctx,
		`SELECT `+wishlistColumns+` FROM wishlists WHERE public_slug = $1`, slug))
	if err != nil {
		return nil, err
	}

	items, err := loadPublicItems(ctx, s.db, wl.ID)
	if err != nil {
		return nil, err
	}

	return &models.PublicWishlist{
		ID:          wl.ID,
		OwnerID:     wl.OwnerID,
		Title:       wl.Title,
		Description: wl.Description,
		PublicSlug:  wl.PublicSlug,
		Deadline:    wl.Deadline,
		CreatedAt:   wl.CreatedAt,
		Items:       items,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWishlist(row rowScanner) (*models.Wishlist, error) {
	var wl models.Wishlist
	err := row.Scan(&wl.ID, &wl.OwnerID, &wl.Title, &wl.Description, &wl.PublicSlug, &wl.Deadline, &wl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWishlistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan wishlist: %w", err)
	}
	return &wl, nil
}

// loadPublicItems returns a wishlist's items ordered by sort_order, then
// created_at, each with its reservation aggregate.
func loadPublicItems(ctx context.Context, db *sql.DB, wishlistID string) ([]models.PublicItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT i.id, i.wishlist_id, i.sort_order, i.title, i.price, i.image_url, i.product_url,
			i.allow_contributions, i.created_at,
			COALESCE(SUM(r.amount), 0) AS reserved_total, COUNT(r.id) AS contributors_count
		FROM items i
		LEFT JOIN reservations r ON r.item_id = i.id
		WHERE i.wishlist_id = $1
		GROUP BY i.id
		ORDER BY i.sort_order, i.created_at`, wishlistID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []models.PublicItem{}
	for rows.Next() {
		var it models.PublicItem
		if err := rows.Scan(&it.ID, &it.WishlistID, &it.SortOrder, &it.Title, &it.Price, &it.ImageURL, &it.ProductURL,
			&it.AllowContributions, &it.CreatedAt, &it.ReservedTotal, &it.ContributorsCount); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
