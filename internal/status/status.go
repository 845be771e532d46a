// Package status defines the order lifecycle state machine shared by the
// server mutation path and the client-side live views.
package status

import (
	"fmt"

	"github.com/brewline/brewline/pkg/errorbank"
)

// Status is one of the finite order lifecycle states.
type Status string

const (
	Pending   Status = "pending"
	Preparing Status = "preparing"
	Ready     Status = "ready"
	Collected Status = "collected"
	Cancelled Status = "cancelled"
)

// Initial is the only status an order may be created with.
const Initial = Pending

// transitions is the full edge table. Collected and Cancelled are terminal.
var transitions = map[Status][]Status{
	Pending:   {Preparing, Cancelled},
	Preparing: {Ready, Cancelled},
	Ready:     {Collected},
	Collected: {},
	Cancelled: {},
}

// ranks orders the states along the happy path so a live view can tell a
// stale echo from a genuine advance. Cancelled shares the terminal rank.
var ranks = map[Status]int{
	Pending:   0,
	Preparing: 1,
	Ready:     2,
	Collected: 3,
	Cancelled: 3,
}

// Parse validates a raw string and returns it as a Status.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", errorbank.BadRequest(fmt.Sprintf("unknown order status %q", raw))
	}
	return s, nil
}

// Valid reports whether s is a member of the state set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing edges.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// IsActive reports whether an order in s still needs kitchen attention.
func (s Status) IsActive() bool {
	return s == Pending || s == Preparing || s == Ready
}

// IsPast reports whether an order in s belongs to order history.
func (s Status) IsPast() bool {
	return s == Collected || s == Cancelled
}

// Rank returns the monotone position of s along the lifecycle. Higher means
// further along; terminal states share the highest rank.
func Rank(s Status) int {
	return ranks[s]
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the move from -> to. It performs no side effects and
// returns an invalid_transition error carrying both endpoints on rejection.
func Transition(from, to Status) error {
	if !from.Valid() {
		return errorbank.BadRequest(fmt.Sprintf("unknown order status %q", from))
	}
	if !to.Valid() {
		return errorbank.BadRequest(fmt.Sprintf("unknown order status %q", to))
	}
	if !CanTransition(from, to) {
		return errorbank.InvalidTransition(
			fmt.Sprintf("order cannot move from %s to %s", from, to),
			errorbank.WithDetail("from", string(from)),
			errorbank.WithDetail("to", string(to)),
		)
	}
	return nil
}

// NextActions returns the legal target states from s, in presentation order.
// Terminal states return an empty slice.
func NextActions(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}
