// Package order defines the order lifecycle: the status enumeration,
// the transition table and the role rules governing who may request
// which transition.  The table is the single source of truth; handlers
// never branch on status pairs directly.
package order

import "fmt"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusRefund    Status = "refund"
)

// transitions maps each status to the set of statuses it may move to.
// canceled and refund are terminal and deliberately map to empty sets.
// confirmed never returns to pending: payment is a one-way gate.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusRefund, StatusCanceled},
	StatusCanceled:  {},
	StatusRefund:    {},
}

// AllStatuses lists every known status.  Exposed so callers (and the
// closure tests) can iterate the full state space.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusCanceled, StatusRefund}
}

// ParseStatus validates a raw string against the known statuses.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	_, ok := transitions[s]
	return s, ok
}

// CanTransition reports whether the table allows moving from one
// status to another.  It applies to every caller; admins get no wider
// table, only wider authorization.
func CanTransition(from, to Status) bool {
	for _, dst := range transitions[from] {
		if dst == to {
			return true
		}
	}
	return false
}

// MemberMayRequest reports whether a non-admin may request the given
// transition on an order they own.  Members can only cancel their own
// pending orders; everything else is reserved to admins.
func MemberMayRequest(from, to Status) bool {
	return from == StatusPending && to == StatusCanceled
}

// TransitionError builds the stable message surfaced when a requested
// pair is not in the table.
func TransitionError(from, to Status) string {
	return fmt.Sprintf("Cannot transition from %s to %s", from, to)
}
