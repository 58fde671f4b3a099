// Package api is the HTTP client of the wishlist ledger.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wishlistai/backend/internal/models"
)

const apiPrefix = "/api/v1"

// ReservationRequest is the body of a reservation write.
type ReservationRequest struct {
	Amount            int64   `json:"amount"`
	IsFullReservation bool    `json:"is_full_reservation"`
	GuestName         *string `json:"guest_name,omitempty"`
}

// ShareInfo is the owner's share link for a wishlist.
type ShareInfo struct {
	URL       string `json:"url"`
	Slug      string `json:"slug"`
	QRCodePNG string `json:"qr_code_png"`
}

// StatusError is a non-2xx answer from the ledger. Message is the server's
// error text when the body carried one.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: &http.Client{Timeout: timeout},
	}
}

// GetWishlistBySlug reads the public snapshot of a wishlist.
func (c *Client) GetWishlistBySlug(ctx context.Context, slug string) (models.PublicWishlist, error) {
	var out models.PublicWishlist
	if err := c.do(ctx, http.MethodGet, "/public/wishlists/by-slug/"+url.PathEscape(slug), nil, &out); err != nil {
		return models.PublicWishlist{}, err
	}
	return out, nil
}

// FetchBySlug lets the client serve as a view store fetcher.
func (c *Client) FetchBySlug(ctx context.Context, slug string) (models.PublicWishlist, error) {
	return c.GetWishlistBySlug(ctx, slug)
}

// CreateReservation posts a reservation. The response carries no aggregate;
// the new totals arrive on the event channel.
func (c *Client) CreateReservation(ctx context.Context, listID, itemID string, req ReservationRequest) error {
	path := "/wishlists/" + url.PathEscape(listID) + "/items/" + url.PathEscape(itemID) + "/reservations"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// GetShare fetches the share link of an owned wishlist. Requires Token.
func (c *Client) GetShare(ctx context.Context, listID string) (ShareInfo, error) {
	var out ShareInfo
	if err := c.do(ctx, http.MethodGet, "/wishlists/"+url.PathEscape(listID)+"/share", nil, &out); err != nil {
		return ShareInfo{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
			if json.Unmarshal(data, &payload) == nil {
				se.Message = payload.Error
			}
		}
		return se
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}
