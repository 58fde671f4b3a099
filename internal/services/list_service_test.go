package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishlistai/backend/internal/audit"
	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/models"
)

const (
	testOwnerID  = "11111111-2222-3333-4444-555555555555"
	ownedQuery   = "SELECT (.+) FROM wishlists WHERE id = \\$1"
	publicItemsQ = "SELECT i.id, (.+) FROM items i LEFT JOIN reservations r ON r.item_id = i.id WHERE i.wishlist_id = \\$1 GROUP BY i.id ORDER BY i.sort_order, i.created_at"
)

var (
	wishlistCols   = []string{"id", "owner_id", "title", "description", "public_slug", "deadline", "created_at"}
	publicItemCols = []string{"id", "wishlist_id", "sort_order", "title", "price", "image_url", "product_url", "allow_contributions", "created_at", "reserved_total", "contributors_count"}
)

// ownerRouter authenticates every request as userID.
func ownerRouter(userID string, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(mW.WithUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	return r
}

func expectOwnedWishlist(mock sqlmock.Sqlmock, owner string) {
	mock.ExpectQuery(ownedQuery).
		WithArgs(testListID).
		WillReturnRows(sqlmock.NewRows(wishlistCols).
			AddRow(testListID, owner, "Birthday", nil, "slug-abc", nil, time.Now()))
}

func newListService(t *testing.T) (*ListService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewListService(db, audit.NewLoggerTo(io.Discard)), mock
}

func TestListService_CreateWishlist(t *testing.T) {
	route := func(s *ListService) func(chi.Router) {
		return func(r chi.Router) { r.Post("/wishlists", s.CreateWishlist) }
	}

	t.Run("creates with a fresh slug", func(t *testing.T) {
		svc, mock := newListService(t)
		mock.ExpectExec("INSERT INTO wishlists").
			WithArgs(sqlmock.AnyArg(), testOwnerID, "Birthday", nil, sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/wishlists", strings.NewReader(`{"title":"Birthday"}`)))

		require.Equal(t, http.StatusCreated, w.Code)
		var wl models.Wishlist
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wl))
		assert.Equal(t, testOwnerID, wl.OwnerID)
		assert.Len(t, wl.PublicSlug, 22)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries on slug collision", func(t *testing.T) {
		svc, mock := newListService(t)
		mock.ExpectExec("INSERT INTO wishlists").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "wishlists_public_slug_key"})
		mock.ExpectExec("INSERT INTO wishlists").
			WillReturnResult(sqlmock.NewResult(1, 1))

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/wishlists", strings.NewReader(`{"title":"Birthday"}`)))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires a title", func(t *testing.T) {
		svc, mock := newListService(t)
		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/wishlists", strings.NewReader(`{"description":"x"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Title")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("anonymous caller", func(t *testing.T) {
		svc, _ := newListService(t)
		w := httptest.NewRecorder()
		ownerRouter("", route(svc)).ServeHTTP(w,
			httptest.NewRequest(http.MethodPost, "/wishlists", strings.NewReader(`{"title":"Birthday"}`)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestListService_GetWishlist(t *testing.T) {
	route := func(s *ListService) func(chi.Router) {
		return func(r chi.Router) { r.Get("/wishlists/{id}", s.GetWishlist) }
	}

	t.Run("owner sees totals but not contributors", func(t *testing.T) {
		svc, mock := newListService(t)
		expectOwnedWishlist(mock, testOwnerID)
		mock.ExpectQuery(publicItemsQ).
			WithArgs(testListID).
			WillReturnRows(sqlmock.NewRows(publicItemCols).
				AddRow(testItemID, testListID, 0, "Kettle", int64(500), nil, nil, true, time.Now(), int64(200), 2))

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+testListID, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var wl models.PublicWishlist
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wl))
		require.Len(t, wl.Items, 1)
		assert.Equal(t, int64(200), wl.Items[0].ReservedTotal)
		assert.Equal(t, 2, wl.Items[0].ContributorsCount)
		assert.NotContains(t, w.Body.String(), "guest_name")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's wishlist", func(t *testing.T) {
		svc, mock := newListService(t)
		expectOwnedWishlist(mock, "99999999-2222-3333-4444-555555555555")

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+testListID, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing wishlist", func(t *testing.T) {
		svc, mock := newListService(t)
		mock.ExpectQuery(ownedQuery).WithArgs(testListID).WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, route(svc)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+testListID, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListService_UpdateAndDelete(t *testing.T) {
	t.Run("update returns the new row", func(t *testing.T) {
		svc, mock := newListService(t)
		expectOwnedWishlist(mock, testOwnerID)
		mock.ExpectQuery("UPDATE wishlists SET title = COALESCE\\(\\$1, title\\)").
			WithArgs("Wedding", nil, nil, testListID).
			WillReturnRows(sqlmock.NewRows(wishlistCols).
				AddRow(testListID, testOwnerID, "Wedding", nil, "slug-abc", nil, time.Now()))

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, func(r chi.Router) { r.Patch("/wishlists/{id}", svc.UpdateWishlist) }).
			ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/wishlists/"+testListID, strings.NewReader(`{"title":"Wedding"}`)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"Wedding"`)
		assert.Contains(t, w.Body.String(), `"public_slug":"slug-abc"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete", func(t *testing.T) {
		svc, mock := newListService(t)
		expectOwnedWishlist(mock, testOwnerID)
		mock.ExpectExec("DELETE FROM wishlists WHERE id = \\$1 AND owner_id = \\$2").
			WithArgs(testListID, testOwnerID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		ownerRouter(testOwnerID, func(r chi.Router) { r.Delete("/wishlists/{id}", svc.DeleteWishlist) }).
			ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/wishlists/"+testListID, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListService_ListWishlists(t *testing.T) {
	svc, mock := newListService(t)
	mock.ExpectQuery("SELECT w.id, (.+) FROM wishlists w LEFT JOIN items i").
		WithArgs(testOwnerID).
		WillReturnRows(sqlmock.NewRows(append(wishlistCols, "count")).
			AddRow(testListID, testOwnerID, "Birthday", nil, "slug-abc", nil, time.Now(), 3))

	w := httptest.NewRecorder()
	ownerRouter(testOwnerID, func(r chi.Router) { r.Get("/wishlists", svc.ListWishlists) }).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var out []models.WishlistSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].ItemsCount)
}

func TestGenerateSlug(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		slug, err := GenerateSlug()
		require.NoError(t, err)
		assert.Len(t, slug, 22)
		assert.NotContains(t, slug, "/")
		assert.NotContains(t, slug, "+")
		assert.False(t, seen[slug])
		seen[slug] = true
	}
}
