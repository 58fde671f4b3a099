package services

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/models"
)

// UpdateUserRequest sets or clears the Pushover user key. An empty string
// clears it.
type UpdateUserRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PushoverUserKey *string `json:"pushover_user_key,omitempty" validate:"omitempty,max=64,alphanum"`
}

type UserService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db, validator: NewValidationHelper()}
}

const userColumns = `id, email, name, pushover_user_key, created_at`

// GetMe returns the authenticated user
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/me [get]
func (s *UserService) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := mW.UserID(r)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	user, err := scanUser(s.db.QueryRowContext(r.Context(), `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[USER] load %s failed: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch user", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, user)
}

// UpdateMe changes the authenticated user's name or Pushover key
// @Summary Update current user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /users/me [patch]
func (s *UserService) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := mW.UserID(r)
	if userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req UpdateUserRequest
	if !s.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	clearKey := false
	if req.PushoverUserKey != nil {
		key := strings.TrimSpace(*req.PushoverUserKey)
		if key == "" {
			clearKey = true
			req.PushoverUserKey = nil
		} else {
			req.PushoverUserKey = &key
		}
	}

	user, err := scanUser(s.db.QueryRowContext(r.Context(), `
		UPDATE users
		SET name = COALESCE($1, name),
			pushover_user_key = CASE WHEN $2 THEN NULL ELSE COALESCE($3, pushover_user_key) END
		WHERE id = $4
		RETURNING `+userColumns, req.Name, clearKey, req.PushoverUserKey, userID))
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[USER] update %s failed: %v", userID, err)
		SendErrorResponse(w, "Failed to update user", http.StatusInternalServerError, nil)
		return
	}

	SendJSON(w, http.StatusOK, user)
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PushoverUserKey, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
