package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type giftForm struct {
	Title string `json:"title" validate:"required,min=2"`
	Price int64  `json:"price" validate:"gte=0"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		assert.NoError(t, vh.ValidateStruct(&giftForm{Title: "Kettle", Price: 500}))
	})

	t.Run("invalid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&giftForm{Title: "K", Price: -1})
		require.Error(t, err)

		verrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok)
		assert.Len(t, verrs, 2)
	})
}

func TestValidationHelper_DecodeAndValidate(t *testing.T) {
	vh := NewValidationHelper()

	cases := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
		wantMsg  string
	}{
		{"valid", `{"title":"Kettle","price":500}`, true, http.StatusOK, ""},
		{"malformed", `{"title":`, false, http.StatusBadRequest, "Invalid request body"},
		{"unknown field", `{"title":"Kettle","colour":"red"}`, false, http.StatusBadRequest, "Invalid request body"},
		{"two objects", `{"title":"Kettle"}{"title":"Lamp"}`, false, http.StatusBadRequest, "Request body must only contain a single JSON object"},
		{"fails validation", `{"title":"K"}`, false, http.StatusBadRequest, "Validation failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var dst giftForm
			ok := vh.DecodeAndValidate(w, r, &dst)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantCode, w.Code)
			if !tc.wantOK {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tc.wantMsg, resp.Error)
			}
		})
	}
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("with validation errors", func(t *testing.T) {
		validationErr := NewValidationHelper().ValidateStruct(&giftForm{Title: "K", Price: -5})

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Contains(t, response.Details, "Title")
		assert.Contains(t, response.Details, "Price")
	})

	t.Run("non validation error is not expanded", func(t *testing.T) {
		w := httptest.NewRecorder()
		SendErrorResponse(w, "Conflict", http.StatusConflict, ErrExceedsPrice)

		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Nil(t, response.Details)
	})
}

func TestUUIDParam(t *testing.T) {
	r := chi.NewRouter()
	var got string
	var ok bool
	r.Get("/w/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, ok = uuidParam(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/w/6F9619FF-8B86-D011-B42D-00CF4FC964FF", nil))
	assert.True(t, ok)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/w/not-a-uuid", nil))
	assert.False(t, ok)
}
