package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		pushover_user_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS wishlists (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		public_slug TEXT NOT NULL UNIQUE,
		deadline TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wishlists_owner ON wishlists(owner_id)`,
	`CREATE TABLE IF NOT EXISTS items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		wishlist_id UUID NOT NULL REFERENCES wishlists(id) ON DELETE CASCADE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		price BIGINT CHECK (price IS NULL OR price >= 0),
		image_url TEXT,
		product_url TEXT,
		allow_contributions BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_wishlist_order ON items(wishlist_id, sort_order, created_at)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		item_id UUID NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL CHECK (amount > 0),
		is_full_reservation BOOLEAN NOT NULL DEFAULT FALSE,
		guest_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_item ON reservations(item_id)`,
}

// Migrate creates the tables the service needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Printf("[DB] schema up to date (%d statements)", len(schema))
	return nil
}
