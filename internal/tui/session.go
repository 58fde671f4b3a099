// Package tui is the terminal view of a shared wishlist: live totals with a
// connection banner, and the reservation and contribution form.
package tui

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wishlistai/backend/internal/channel"
	"github.com/wishlistai/backend/internal/events"
	"github.com/wishlistai/backend/internal/viewstate"
)

// StateMsg carries a connection state change.
type StateMsg struct {
	State channel.State
}

// SnapshotMsg carries a new view of the wishlist.
type SnapshotMsg struct {
	Snapshot viewstate.Snapshot
}

// SubmitResultMsg is the outcome of one reservation or contribution.
type SubmitResultMsg struct {
	ItemID string
	Err    error
}

// Session ties the event channel and the view store of one viewing session
// together and turns what they report into tea messages.
type Session struct {
	client *channel.Client
	store  *viewstate.Store

	updates chan tea.Msg
	cancel  context.CancelFunc
	sub     *channel.Subscription
}

func NewSession(client *channel.Client, store *viewstate.Store) *Session {
	return &Session{
		client:  client,
		store:   store,
		updates: make(chan tea.Msg, 64),
		cancel:  func() {},
	}
}

// Start reads the wishlist and subscribes to its event channel. Every
// snapshot change, including the first, is delivered on Updates.
func (s *Session) Start(ctx context.Context) (viewstate.Snapshot, error) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.store.OnChange(func(snap viewstate.Snapshot) {
		s.emit(ctx, SnapshotMsg{Snapshot: snap})
	})
	snap, err := s.store.Hydrate(ctx)
	if err != nil {
		s.cancel()
		return viewstate.Snapshot{}, err
	}

	s.sub = s.client.Open(ctx, snap.ID, channel.Callbacks{
		OnStateChange: func(st channel.State) {
			s.emit(ctx, StateMsg{State: st})
		},
		OnEvent: func(ev events.Event) {
			if err := s.store.Handle(ctx, ev); err != nil && ctx.Err() == nil {
				log.Printf("[VIEW] %s for %s not applied: %v", ev.Type, ev.ItemID, err)
			}
		},
		OnOpen: func() {
			// Nothing broadcast before this connection joined is replayed,
			// including what happened since Hydrate.
			if err := s.store.Refetch(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[VIEW] resync of %s after connect failed: %v", snap.ID, err)
			}
		},
	})
	return snap, nil
}

// Updates is read by the model, one message per wait.
func (s *Session) Updates() <-chan tea.Msg {
	return s.updates
}

// Close unsubscribes. Nothing is emitted after it returns.
func (s *Session) Close() {
	s.cancel()
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
}

func (s *Session) emit(ctx context.Context, msg tea.Msg) {
	select {
	case s.updates <- msg:
	case <-ctx.Done():
	}
}
