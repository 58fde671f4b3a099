package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishlistai/backend/internal/events"
)

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

// fakeDialer hands out the queued results in order; once the queue is
// exhausted every dial fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []any
	dials   int
	urls    []string
}

func (d *fakeDialer) push(results ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.urls = append(d.urls, url)
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	switch v := r.(type) {
	case *fakeConn:
		return v, nil
	case error:
		return nil, v
	}
	return nil, errors.New("unexpected dial result")
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recorder struct {
	mu     sync.Mutex
	states []State
	events []events.Event
	opens  int
	closes int

	stateCh chan State
	eventCh chan events.Event
}

func newRecorder() *recorder {
	return &recorder{stateCh: make(chan State, 64), eventCh: make(chan events.Event, 64)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnEvent: func(ev events.Event) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
			select {
			case r.eventCh <- ev:
			default:
			}
		},
		OnStateChange: func(st State) {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
			select {
			case r.stateCh <- st:
			default:
			}
		},
		OnOpen: func() {
			r.mu.Lock()
			r.opens++
			r.mu.Unlock()
		},
		OnClose: func() {
			r.mu.Lock()
			r.closes++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitState(t *testing.T, r *recorder, want State) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-r.stateCh:
			if st == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s, saw %v", want, r.States())
		}
	}
}

func waitEvent(t *testing.T, r *recorder) events.Event {
	t.Helper()
	select {
	case ev := <-r.eventCh:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return events.Event{}
}

func newTestClient(d Dialer) *Client {
	return NewClient(Config{
		APIBase:      "http://localhost:8080",
		PingInterval: time.Hour,
		ReconnectMin: time.Hour,
		ReconnectMax: time.Hour,
	}, d)
}

func TestClient_DeliversEventsInOrder(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)
	rec := newRecorder()

	sub := newTestClient(dialer).Open(context.Background(), "list-1", rec.callbacks())
	waitState(t, rec, StateConnected)

	conn.frames <- []byte(`{"type":"contribution_added","item_id":"a","reserved_total":200,"contributors_count":1}`)
	conn.frames <- []byte(`not json`)
	conn.frames <- []byte(`{"type":"item_reserved"}`)
	conn.frames <- []byte(`{"type":"item_created","item_id":"b"}`)

	first := waitEvent(t, rec)
	second := waitEvent(t, rec)
	assert.Equal(t, events.ContributionAdded, first.Type)
	assert.Equal(t, int64(200), first.ReservedTotal)
	assert.Equal(t, events.ItemCreated, second.Type)
	assert.Equal(t, "b", second.ItemID)

	sub.Unsubscribe()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 2)
	assert.Equal(t, 1, rec.opens)
	assert.Equal(t, 1, rec.closes)
	assert.Equal(t, []string{"ws://localhost:8080/api/v1/ws/wishlist/list-1"}, dialer.urls)
}

func TestClient_StateMachine(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(first, second)
	rec := newRecorder()

	c := newTestClient(dialer)
	c.sleep = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }

	sub := c.Open(context.Background(), "list-1", rec.callbacks())
	waitState(t, rec, StateConnected)

	close(first.frames)
	waitState(t, rec, StateReconnecting)
	waitState(t, rec, StateConnected)

	sub.Unsubscribe()

	assert.Equal(t, []State{
		StateConnecting,
		StateConnected,
		StateReconnecting,
		StateConnecting,
		StateConnected,
		StateDisconnected,
	}, rec.States())
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestClient_BackoffGrowthAndReset(t *testing.T) {
	conn := newFakeConn()
	refused := errors.New("connection refused")
	dialer := &fakeDialer{}
	dialer.push(refused, refused, refused, refused, conn)

	c := NewClient(Config{
		APIBase:      "http://localhost:8080",
		PingInterval: time.Hour,
		ReconnectMin: 100 * time.Millisecond,
		ReconnectMax: 500 * time.Millisecond,
	}, dialer)

	var mu sync.Mutex
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err() == nil
	}

	rec := newRecorder()
	sub := c.Open(context.Background(), "list-1", rec.callbacks())
	waitState(t, rec, StateConnected)

	// Drop the connection; the queue is empty so the next dials fail.
	close(conn.frames)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) >= 7
	}, 2*time.Second, time.Millisecond)
	sub.Unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		// connected: the counter starts over
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, delays[:7])
}

func TestClient_UnsubscribeDuringReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	rec := newRecorder()

	sub := newTestClient(dialer).Open(context.Background(), "list-1", rec.callbacks())
	waitState(t, rec, StateReconnecting)

	sub.Unsubscribe()
	assert.Equal(t, StateDisconnected, sub.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())

	assert.NotPanics(t, sub.Unsubscribe)
	assert.Equal(t, []State{StateConnecting, StateReconnecting, StateDisconnected}, rec.States())
}

func TestClient_UnsubscribeIsTerminal(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)
	rec := newRecorder()

	sub := newTestClient(dialer).Open(context.Background(), "list-1", rec.callbacks())
	waitState(t, rec, StateConnected)

	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-conn.closed:
	default:
		t.Fatal("transport left open after unsubscribe")
	}
	<-sub.Done()
	states := rec.States()
	assert.Equal(t, StateDisconnected, states[len(states)-1])
	assert.Equal(t, 1, countState(states, StateDisconnected))
}

func TestClient_UnsubscribeFromCallback(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)

	var sub *Subscription
	ready := make(chan struct{})
	delivered := make(chan struct{}, 4)
	cb := Callbacks{
		OnEvent: func(events.Event) {
			<-ready
			sub.Unsubscribe()
			delivered <- struct{}{}
		},
	}
	sub = newTestClient(dialer).Open(context.Background(), "list-1", cb)
	close(ready)

	conn.frames <- []byte(`{"type":"item_deleted","item_id":"a"}`)
	conn.frames <- []byte(`{"type":"item_deleted","item_id":"b"}`)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Len(t, delivered, 1)
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestClient_UnsubscribeWaitsForRunningCallback(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)

	entered := make(chan struct{})
	release := make(chan struct{})
	var returned atomic.Bool
	var late atomic.Int32
	var disconnects atomic.Int32
	cb := Callbacks{
		OnEvent: func(events.Event) {
			close(entered)
			<-release
		},
		OnStateChange: func(st State) {
			if returned.Load() {
				late.Add(1)
			}
			if st == StateDisconnected {
				disconnects.Add(1)
			}
		},
		OnClose: func() {
			if returned.Load() {
				late.Add(1)
			}
		},
	}
	sub := newTestClient(dialer).Open(context.Background(), "list-1", cb)
	conn.frames <- []byte(`{"type":"item_deleted","item_id":"a"}`)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	unsubscribed := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		returned.Store(true)
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Unsubscribe returned while a callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-unsubscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("Unsubscribe did not return")
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("Unsubscribe returned before the subscription stopped")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, late.Load())
	assert.Equal(t, int32(1), disconnects.Load())
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestClient_SendsLivenessProbe(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)

	c := NewClient(Config{APIBase: "https://gifts.example.com", PingInterval: 5 * time.Millisecond, ReconnectMin: time.Hour, ReconnectMax: time.Hour}, dialer)
	sub := c.Open(context.Background(), "list-1", Callbacks{})
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return len(conn.Writes()) >= 2 }, 2*time.Second, time.Millisecond)
	for _, w := range conn.Writes() {
		assert.Equal(t, events.ProbeFrame, w)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{}
	dialer.push(conn)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	sub := newTestClient(dialer).Open(ctx, "list-1", rec.callbacks())
	waitState(t, rec, StateConnected)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Equal(t, StateDisconnected, sub.State())
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("https://gifts.example.com/", "/api/v1/ws/wishlist/abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://gifts.example.com/api/v1/ws/wishlist/abc", u)

	u, err = WebsocketURL("http://localhost:8000", "/api/v1/ws/wishlist/abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/api/v1/ws/wishlist/abc", u)

	_, err = WebsocketURL("ftp://example.com", "/x")
	assert.Error(t, err)
}

func countState(states []State, want State) int {
	n := 0
	for _, s := range states {
		if s == want {
			n++
		}
	}
	return n
}
