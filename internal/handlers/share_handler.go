package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/services"
)

type ShareHandler struct {
	service *services.ShareService
}

func NewShareHandler(service *services.ShareService) *ShareHandler {
	return &ShareHandler{service: service}
}

// GetShare returns the public link of a wishlist with a QR code
// @Summary Share wishlist
// @Description Public URL of the wishlist and a base64 PNG QR code pointing at it
// @Tags wishlists
// @Produce json
// @Security BearerAuth
// @Param id path string true "Wishlist ID"
// @Success 200 {object} services.ShareInfo
// @Failure 401 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wishlists/{id}/share [get]
func (h *ShareHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	userID := mW.UserID(r)
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	wishlistID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		services.SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	}

	wl, err := h.service.OwnedWishlist(r.Context(), wishlistID.String(), userID)
	switch {
	case errors.Is(err, services.ErrWishlistNotFound):
		services.SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, services.ErrNotOwner):
		services.SendErrorResponse(w, "Not your wishlist", http.StatusForbidden, nil)
		return
	case err != nil:
		log.Printf("[SHARE] load %s failed: %v", wishlistID, err)
		services.SendErrorResponse(w, "Failed to fetch wishlist", http.StatusInternalServerError, nil)
		return
	}

	info, err := h.service.GenerateShare(r.Context(), wl)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, info)
}
