package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

// Notifier tells a wishlist's owner that something was reserved. It must
// not reveal who did it.
type Notifier interface {
	NotifyReservation(ctx context.Context, wishlistID, itemTitle string, full bool)
}

// PushoverNotifier sends owner notifications through Pushover. It is a
// no-op when no application token is configured or the owner has no user
// key.
type PushoverNotifier struct {
	db       *sql.DB
	http     *http.Client
	appToken string
	endpoint string
}

func NewPushoverNotifier(db *sql.DB, appToken string) *PushoverNotifier {
	return &PushoverNotifier{
		db:       db,
		http:     &http.Client{Timeout: 10 * time.Second},
		appToken: appToken,
		endpoint: pushoverURL,
	}
}

func (n *PushoverNotifier) NotifyReservation(ctx context.Context, wishlistID, itemTitle string, full bool) {
	if n.appToken == "" {
		return
	}

	listTitle, userKey, err := n.ownerKey(ctx, wishlistID)
	if err != nil {
		log.Printf("[PUSHOVER] owner lookup for wishlist %s failed: %v", wishlistID, err)
		return
	}
	if userKey == "" {
		return
	}

	message := fmt.Sprintf("Someone contributed to %q", itemTitle)
	if full {
		message = fmt.Sprintf("Someone reserved %q", itemTitle)
	}
	if err := n.Send(ctx, userKey, listTitle, message); err != nil {
		log.Printf("[PUSHOVER] send failed: %v", err)
	}
}

// Send posts one message to Pushover.
func (n *PushoverNotifier) Send(ctx context.Context, userKey, title, message string) error {
	form := url.Values{
		"token":   {n.appToken},
		"user":    {userKey},
		"title":   {title},
		"message": {message},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pushover: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (n *PushoverNotifier) ownerKey(ctx context.Context, wishlistID string) (string, string, error) {
	var title string
	var key sql.NullString
	err := n.db.QueryRowContext(ctx, `
		SELECT w.title, u.pushover_user_key
		FROM wishlists w
		JOIN users u ON u.id = w.owner_id
		WHERE w.id = $1`, wishlistID).Scan(&title, &key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(key.String), nil
}
