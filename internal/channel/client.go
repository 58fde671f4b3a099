// Package channel keeps one live subscription to a wishlist's event stream,
// reconnecting with exponential backoff until the subscriber lets go.
package channel

import (
	"bytes"
	"context"
	"log"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wishlistai/backend/internal/events"
)

const wishlistPath = "/api/v1/ws/wishlist/"

// Config holds the event channel settings. Zero durations fall back to
// 25s pings and a 1s..30s reconnect window.
type Config struct {
	APIBase      string
	PingInterval time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Callbacks receive everything a subscription reports. All of them run on
// the subscription's goroutine, one at a time, in arrival order.
type Callbacks struct {
	OnEvent       func(events.Event)
	OnStateChange func(State)
	OnOpen        func()
	OnClose       func()
}

// Client opens subscriptions. It holds no connection itself; every
// subscription owns its own transport.
type Client struct {
	cfg    Config
	dialer Dialer

	// sleep waits d or until ctx is done and reports whether the full
	// delay elapsed.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewClient(cfg Config, dialer Dialer) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
		if cfg.ReconnectMax < cfg.ReconnectMin {
			cfg.ReconnectMax = cfg.ReconnectMin
		}
	}
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Client{cfg: cfg, dialer: dialer, sleep: sleepCtx}
}

// URL is the event channel address of a wishlist.
func (c *Client) URL(listID string) (string, error) {
	return WebsocketURL(c.cfg.APIBase, wishlistPath+listID)
}

// Subscription is the handle returned by Open.
type Subscription struct {
	client *Client
	listID string
	cb     Callbacks

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State

	// loop is the id of the goroutine running the subscription, the only
	// one that ever invokes a callback.
	loop atomic.Uint64
}

// Open starts a subscription for listID and returns immediately. The
// subscription runs until Unsubscribe is called or ctx is cancelled.
func (c *Client) Open(ctx context.Context, listID string, cb Callbacks) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		client: c,
		listID: listID,
		cb:     cb,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Unsubscribe stops the subscription. It is idempotent and safe in every
// state. It blocks until the subscription goroutine has finished any running
// callback, emitted StateDisconnected and exited, so nothing fires after it
// returns. The one exception is a call made by a callback itself: waiting
// there would deadlock, so it returns at once and the subscription stops as
// soon as that callback returns.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	if s.loop.Load() == goroutineID() {
		return
	}
	<-s.done
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	s.loop.Store(goroutineID())

	url, err := s.client.URL(s.listID)
	if err != nil {
		log.Printf("[CHANNEL] invalid event channel address for %s: %v", s.listID, err)
		<-ctx.Done()
		s.setState(StateDisconnected)
		return
	}

	backoff := Backoff{Min: s.client.cfg.ReconnectMin, Max: s.client.cfg.ReconnectMax}
	wasOpen := false
	for {
		s.setState(StateConnecting)
		conn, err := s.client.dialer.Dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.setState(StateReconnecting)
			if !s.client.sleep(ctx, backoff.Next()) {
				break
			}
			continue
		}

		backoff.Reset()
		s.setState(StateConnected)
		s.dispatch(s.cb.OnOpen)

		s.serve(ctx, conn)

		if ctx.Err() != nil {
			wasOpen = true
			break
		}
		s.setState(StateReconnecting)
		s.dispatch(s.cb.OnClose)
		if !s.client.sleep(ctx, backoff.Next()) {
			break
		}
	}
	s.setState(StateDisconnected)
	if wasOpen {
		s.dispatch(s.cb.OnClose)
	}
}

// serve pumps frames from conn until it closes or ctx is done. The
// connection is closed when serve returns.
func (s *Subscription) serve(ctx context.Context, conn Conn) {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
				continue
			}
			select {
			case frames <- data:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.client.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		close(stop)
		conn.Close()
		<-readerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-frames:
			ev, ok := events.Parse(data)
			if !ok || ctx.Err() != nil {
				continue
			}
			if s.cb.OnEvent != nil {
				s.dispatch(func() { s.cb.OnEvent(ev) })
			}
		case err := <-readErr:
			if ctx.Err() == nil {
				log.Printf("[CHANNEL] connection for %s closed: %v", s.listID, err)
			}
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(events.ProbeFrame)); err != nil {
				return
			}
		}
	}
}

func (s *Subscription) setState(st State) {
	s.mu.Lock()
	if s.state == st || s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	if s.cb.OnStateChange != nil {
		s.dispatch(func() { s.cb.OnStateChange(st) })
	}
}

func (s *Subscription) dispatch(fn func()) {
	if fn == nil {
		return
	}
	fn()
}

// goroutineID reads the calling goroutine's id from its stack header,
// "goroutine 18 [running]:". It is never zero for a live goroutine.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
