package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wishlistai/backend/internal/services"
)

// ListStreamer serves one wishlist's event channel over an upgraded
// connection.
type ListStreamer interface {
	ServeList(w http.ResponseWriter, r *http.Request, listID string)
}

type WSHandler struct {
	hub ListStreamer
}

func NewWSHandler(hub ListStreamer) *WSHandler {
	return &WSHandler{hub: hub}
}

// Subscribe opens the event channel of a wishlist
// @Summary Wishlist event channel
// @Description WebSocket. Send the text frame "ping" to receive {"type":"pong"}. Server pushes item_reserved, contribution_added, item_created, item_updated and item_deleted frames.
// @Tags realtime
// @Param id path string true "Wishlist ID"
// @Success 101
// @Failure 404 {object} services.ErrorResponse
// @Router /ws/wishlist/{id} [get]
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		services.SendErrorResponse(w, "Wishlist not found", http.StatusNotFound, nil)
		return
	}
	h.hub.ServeList(w, r, id.String())
}
