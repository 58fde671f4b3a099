package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/wishlistai/backend/internal/models"
)

const shareQRTTL = 24 * time.Hour

// ShareInfo is the public link of a wishlist and its QR code.
type ShareInfo struct {
	URL       string `json:"url"`
	Slug      string `json:"slug"`
	QRCodePNG string `json:"qr_code_png"`
}

// ShareService builds share links. QR images are cached in Redis by slug
// when Redis is available.
type ShareService struct {
	db        *sql.DB
	redis     *redis.Client
	publicURL string
}

func NewShareService(db *sql.DB, redis *redis.Client, publicURL string) *ShareService {
	return &ShareService{
		db:        db,
		redis:     redis,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// OwnedWishlist loads a wishlist and checks its owner.
func (s *ShareService) OwnedWishlist(ctx context.Context, wishlistID, userID string) (*models.Wishlist, error) {
	return ownedWishlist(ctx, s.db, wishlistID, userID)
}

// PublicURL is the address visitors open for slug.
func (s *ShareService) PublicURL(slug string) string {
	return s.publicURL + "/w/" + slug
}

func (s *ShareService) GenerateShare(ctx context.Context, wl *models.Wishlist) (*ShareInfo, error) {
	link := s.PublicURL(wl.PublicSlug)

	qrImage, err := s.cachedQR(ctx, wl.PublicSlug)
	if err != nil {
		log.Printf("[SHARE] cache read for %s failed: %v", wl.PublicSlug, err)
	}
	if qrImage == "" {
		qrImage, err = renderQR(link)
		if err != nil {
			return nil, err
		}
		s.cacheQR(ctx, wl.PublicSlug, qrImage)
	}

	return &ShareInfo{URL: link, Slug: wl.PublicSlug, QRCodePNG: qrImage}, nil
}

func renderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *ShareService) cachedQR(ctx context.Context, slug string) (string, error) {
	if s.redis == nil {
		return "", nil
	}
	data, err := s.redis.Get(ctx, shareKey(slug)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return data, err
}

func (s *ShareService) cacheQR(ctx context.Context, slug, image string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, shareKey(slug), image, shareQRTTL).Err(); err != nil {
		log.Printf("[SHARE] cache write for %s failed: %v", slug, err)
	}
}

func shareKey(slug string) string {
	return fmt.Sprintf("share:qr:%s", slug)
}
