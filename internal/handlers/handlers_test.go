package handlers

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mW "github.com/wishlistai/backend/internal/middleware"
	"github.com/wishlistai/backend/internal/services"
)

const (
	listID  = "6f9619ff-8b86-d011-b42d-00cf4fc964ff"
	ownerID = "11111111-2222-3333-4444-555555555555"
)

var wishlistCols = []string{"id", "owner_id", "title", "description", "public_slug", "deadline", "created_at"}

func shareRouter(svc *services.ShareService, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if userID != "" {
				req = req.WithContext(mW.WithUserID(req.Context(), userID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/wishlists/{id}/share", NewShareHandler(svc).GetShare)
	return r
}

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestShareHandler_GetShare(t *testing.T) {
	t.Run("owner gets link and qr", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery("SELECT (.+) FROM wishlists WHERE id = \\$1").
			WithArgs(listID).
			WillReturnRows(sqlmock.NewRows(wishlistCols).
				AddRow(listID, ownerID, "Birthday", nil, "s3cr3t-slug", nil, time.Now()))

		svc := services.NewShareService(db, nil, "https://gifts.example.com/")
		w := httptest.NewRecorder()
		shareRouter(svc, ownerID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+listID+"/share", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var info services.ShareInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
		assert.Equal(t, "https://gifts.example.com/w/s3cr3t-slug", info.URL)

		png, err := base64.StdEncoding.DecodeString(info.QRCodePNG)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(png[:4]))
	})

	t.Run("not the owner", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery("SELECT (.+) FROM wishlists WHERE id = \\$1").
			WithArgs(listID).
			WillReturnRows(sqlmock.NewRows(wishlistCols).
				AddRow(listID, "someone-else", "Birthday", nil, "slug", nil, time.Now()))

		w := httptest.NewRecorder()
		shareRouter(services.NewShareService(db, nil, "http://x"), ownerID).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+listID+"/share", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown wishlist", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery("SELECT (.+) FROM wishlists WHERE id = \\$1").
			WithArgs(listID).
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		shareRouter(services.NewShareService(db, nil, "http://x"), ownerID).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+listID+"/share", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		db, _ := newDB(t)
		w := httptest.NewRecorder()
		shareRouter(services.NewShareService(db, nil, "http://x"), "").
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wishlists/"+listID+"/share", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

type fakeStreamer struct {
	listID string
}

func (f *fakeStreamer) ServeList(w http.ResponseWriter, r *http.Request, listID string) {
	f.listID = listID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func TestWSHandler_Subscribe(t *testing.T) {
	hub := &fakeStreamer{}
	r := chi.NewRouter()
	r.Get("/ws/wishlist/{id}", NewWSHandler(hub).Subscribe)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/wishlist/"+listID, nil))
	assert.Equal(t, listID, hub.listID)

	hub.listID = ""
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/wishlist/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, hub.listID)
}
