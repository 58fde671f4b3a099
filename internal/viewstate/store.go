package viewstate

import (
	"context"
	"log"
	"sync"

	"github.com/wishlistai/backend/internal/events"
)

// Fetcher reads the authoritative snapshot of a wishlist.
type Fetcher interface {
	FetchBySlug(ctx context.Context, slug string) (Snapshot, error)
}

// Store owns the snapshot of one viewing session. It is discarded with the
// session and never persisted.
type Store struct {
	fetcher Fetcher
	slug    string

	mu       sync.Mutex
	snap     Snapshot
	hydrated bool
	onChange func(Snapshot)

	refetchMu  sync.Mutex
	refetching bool
	pending    bool
}

func NewStore(fetcher Fetcher, slug string) *Store {
	return &Store{fetcher: fetcher, slug: slug}
}

// OnChange registers fn to receive every new snapshot.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Hydrate performs the initial read.
func (s *Store) Hydrate(ctx context.Context) (Snapshot, error) {
	snap, err := s.fetcher.FetchBySlug(ctx, s.slug)
	if err != nil {
		return Snapshot{}, err
	}
	s.replace(snap)
	return snap, nil
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Handle applies ev and runs any refetch it calls for before returning.
// Refetch requests that arrive while one is in flight collapse into a
// single follow-up read.
func (s *Store) Handle(ctx context.Context, ev events.Event) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return nil
	}
	next, effect := Apply(s.snap, ev)
	changed := !sameSnapshot(next, s.snap)
	s.snap = next
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(next)
	}
	if effect == EffectRefetch {
		return s.Refetch(ctx)
	}
	return nil
}

// Refetch re-reads the whole wishlist. Reading the same state twice is
// harmless, so this is at-least-once.
func (s *Store) Refetch(ctx context.Context) error {
	s.refetchMu.Lock()
	if s.refetching {
		s.pending = true
		s.refetchMu.Unlock()
		return nil
	}
	s.refetching = true
	s.refetchMu.Unlock()

	for {
		snap, err := s.fetcher.FetchBySlug(ctx, s.slug)
		if err != nil {
			log.Printf("[VIEW] refetch of %s failed: %v", s.slug, err)
		} else {
			s.replace(snap)
		}

		s.refetchMu.Lock()
		if !s.pending || ctx.Err() != nil {
			s.refetching = false
			s.pending = false
			s.refetchMu.Unlock()
			return err
		}
		s.pending = false
		s.refetchMu.Unlock()
	}
}

func (s *Store) replace(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.hydrated = true
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// sameSnapshot reports whether Apply handed back the snapshot it was given.
func sameSnapshot(a, b Snapshot) bool {
	if len(a.Items) != len(b.Items) {
		return false
	}
	return len(a.Items) == 0 || &a.Items[0] == &b.Items[0]
}
