// Package realtime pushes wishlist events to connected viewers.
package realtime

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"github.com/wishlistai/backend/internal/events"
)

var pongFrame = []byte(`{"type":"pong"}`)

type Config struct {
	// ReadTimeout closes a socket that sent nothing, not even a probe,
	// for this long.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// Hub tracks the sockets open on this instance, grouped by wishlist.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	conn   *websocket.Conn
	listID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func NewHub(cfg Config) *Hub {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The channel is public and carries no identity.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

// ServeList upgrades the request and streams listID's events to it until
// the peer goes away.
func (h *Hub) ServeList(w http.ResponseWriter, r *http.Request, listID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HUB] upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		listID: listID,
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer c.close()
	c.conn.SetReadLimit(4096)
	for {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[HUB] read from %s subscriber: %v", c.listID, err)
			}
			return
		}
		if mt == websocket.TextMessage && string(data) == events.ProbeFrame {
			h.enqueue(c, pongFrame)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.close()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// enqueue hands payload to c without blocking. A subscriber that cannot
// keep up is disconnected; it will reconnect and refetch.
func (h *Hub) enqueue(c *client, payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		log.Printf("[HUB] dropping slow subscriber of %s", c.listID)
		c.close()
	}
}

// Broadcast sends payload to every local subscriber of listID.
func (h *Hub) Broadcast(listID string, payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[listID]))
	for c := range h.rooms[listID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, payload)
	}
}

// Publish delivers ev to this instance's subscribers only. It serves as
// the publisher when no Redis is configured.
func (h *Hub) Publish(_ context.Context, listID string, ev events.Event) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	h.Broadcast(listID, payload)
	return nil
}

// RelayRedis forwards every wishlist event published on Redis to local
// subscribers until ctx is done.
func (h *Hub) RelayRedis(ctx context.Context, rdb *redis.Client, prefix string) error {
	pubsub := rdb.PSubscribe(ctx, events.ChannelPattern(prefix))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("[HUB] relaying %s", events.ChannelPattern(prefix))
	h.relay(ctx, pubsub.Channel(), prefix)
	return nil
}

func (h *Hub) relay(ctx context.Context, messages <-chan *redis.Message, prefix string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			listID, ok := events.WishlistFromChannel(prefix, msg.Channel)
			if !ok {
				continue
			}
			h.Broadcast(listID, []byte(msg.Payload))
		}
	}
}

// Subscribers returns the number of local sockets open for listID.
func (h *Hub) Subscribers(listID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[listID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*client
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.listID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.listID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.listID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.listID)
	}
}
