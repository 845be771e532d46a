// Package store maintains a live view's authoritative order cache: change
// feed events merged into local state with dedup, deterministic ordering and
// reconciliation against in-flight optimistic mutations.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/brewline/brewline/internal/entity"
	"github.com/brewline/brewline/internal/feed"
	"github.com/brewline/brewline/internal/status"
)

// Predicate filters orders in List. Implementations must be pure.
type Predicate func(entity.Order) bool

// Active admits orders that still need kitchen attention.
func Active(order entity.Order) bool {
	return order.Status.IsActive()
}

// Past admits collected and cancelled orders.
func Past(order entity.Order) bool {
	return order.Status.IsPast()
}

// All admits every order.
func All(entity.Order) bool {
	return true
}

// mutation records an in-flight optimistic status change.
type mutation struct {
	prev   status.Status
	target status.Status
}

// Store is the per-view order cache. Safe for concurrent use; a single view
// typically touches it from one goroutine plus the feed pump.
type Store struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]entity.Order
	inflight map[uuid.UUID]mutation
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]entity.Order),
		inflight: make(map[uuid.UUID]mutation),
	}
}

// ApplyInitialSnapshot replaces the current contents entirely. Optimistic
// bookkeeping is cleared; a snapshot is by definition remote-confirmed.
func (s *Store) ApplyInitialSnapshot(orders []entity.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[uuid.UUID]entity.Order, len(orders))
	s.inflight = make(map[uuid.UUID]mutation)
	for _, order := range orders {
		s.orders[order.ID] = order
	}
}

// ApplyEvent merges one change feed event into local state. Inserts are
// idempotent overwrites; deletes of absent ids are no-ops. Updates replace
// the record wholesale unless a mutation is in flight for the order, in which
// case the status field is reconciled: an echo ranked older than what the
// view already shows keeps the local status, while an equal-or-newer remote
// status wins and settles the optimistic state.
func (s *Store) ApplyEvent(event feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := event.Order.ID
	switch event.Kind {
	case feed.KindInsert:
		s.orders[id] = event.Order
	case feed.KindUpdate:
		current, ok := s.orders[id]
		if !ok {
			s.orders[id] = event.Order
			return
		}
		incoming := event.Order
		if _, fly := s.inflight[id]; fly {
			if status.Rank(incoming.Status) < status.Rank(current.Status) {
				// Stale echo racing the optimistic write; keep the local
				// status but accept the rest of the record.
				incoming.Status = current.Status
			} else {
				// Remote caught up with, or passed, the optimistic state.
				delete(s.inflight, id)
			}
		}
		s.orders[id] = incoming
	case feed.KindDelete:
		delete(s.orders, id)
		delete(s.inflight, id)
	}
}

// Get returns the current state for id.
func (s *Store) Get(id uuid.UUID) (entity.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	return order, ok
}

// Len reports how many orders the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// List returns the orders admitted by pred, sorted by created_at descending
// with ties broken by id ascending for determinism.
func (s *Store) List(pred Predicate) []entity.Order {
	s.mu.RLock()
	out := make([]entity.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if pred(order) {
			out = append(out, order)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out
}

// ApplyOptimistic writes target into the local record ahead of remote
// confirmation and records the pre-change status for rollback. Returns the
// pre-change status; ok is false when the order is unknown or a mutation is
// already in flight.
func (s *Store) ApplyOptimistic(id uuid.UUID, target status.Status) (status.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return "", false
	}
	if _, fly := s.inflight[id]; fly {
		return "", false
	}

	prev := order.Status
	s.inflight[id] = mutation{prev: prev, target: target}
	order.Status = target
	s.orders[id] = order
	return prev, true
}

// ConfirmOptimistic settles an in-flight mutation after remote success. The
// optimistic state stays in place; the echoed update is absorbed as a no-op.
func (s *Store) ConfirmOptimistic(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// RevertOptimistic rolls the order back to its last remote-confirmed status
// after remote failure. A no-op when the mutation already settled (for
// example, an authoritative echo arrived first).
func (s *Store) RevertOptimistic(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, fly := s.inflight[id]
	if !fly {
		return
	}
	delete(s.inflight, id)

	order, ok := s.orders[id]
	if !ok {
		return
	}
	order.Status = m.prev
	s.orders[id] = order
}

// InFlight reports whether an optimistic mutation is outstanding for id.
func (s *Store) InFlight(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, fly := s.inflight[id]
	return fly
}
