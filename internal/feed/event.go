// Package feed implements the order change feed: row-level insert, update
// and delete notifications fanned out to live subscribers, plus a client
// that couples a subscription with an initial snapshot fetch.
package feed

import (
	"github.com/google/uuid"

	"github.com/brewline/brewline/internal/entity"
)

// Kind classifies a change event.
type Kind string

const (
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

// Event is one row-level change notification. Order carries the full row
// after the change (for deletes, the last known row).
type Event struct {
	Kind  Kind
	Order entity.Order
}

// Filter restricts a subscription to a single owner or a single order. The
// zero value matches everything (admin view). Events for non-matching orders
// are dropped client-side even when the upstream already filters.
type Filter struct {
	UserID  *uuid.UUID
	OrderID *uuid.UUID
}

// Matches reports whether the filter admits the given order.
func (f Filter) Matches(order entity.Order) bool {
	if f.UserID != nil && order.UserID != *f.UserID {
		return false
	}
	if f.OrderID != nil && order.ID != *f.OrderID {
		return false
	}
	return true
}

// ForUser builds a filter restricted to one owning customer.
func ForUser(userID uuid.UUID) Filter {
	return Filter{UserID: &userID}
}

// ForOrder builds a filter restricted to one order id.
func ForOrder(orderID uuid.UUID) Filter {
	return Filter{OrderID: &orderID}
}
