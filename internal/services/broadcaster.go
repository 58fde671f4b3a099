package services

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/wishlistai/backend/internal/events"
)

// Publisher delivers an event to every subscriber of a wishlist.
type Publisher interface {
	Publish(ctx context.Context, wishlistID string, ev events.Event) error
}

// RedisPublisher fans events out through Redis so every server instance
// can push them to its own sockets.
type RedisPublisher struct {
	redis  *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{redis: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, wishlistID string, ev events.Event) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, events.Channel(p.prefix, wishlistID), payload).Err()
}

// publishEvent logs instead of failing: the write is already committed and
// viewers converge on their next read.
func publishEvent(ctx context.Context, pub Publisher, wishlistID string, ev events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, wishlistID, ev); err != nil {
		log.Printf("[BROADCAST] failed to publish %s for wishlist %s: %v", ev.Type, wishlistID, err)
	}
}
