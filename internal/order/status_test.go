package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	// The only legal pairs.  Everything else over the Cartesian product
	// must be rejected.
	legal := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:  true,
		{StatusPending, StatusCanceled}:   true,
		{StatusConfirmed, StatusRefund}:   true,
		{StatusConfirmed, StatusCanceled}: true,
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			got := CanTransition(from, to)
			want := legal[[2]Status{from, to}]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusCanceled, StatusRefund} {
		for _, to := range AllStatuses() {
			assert.False(t, CanTransition(terminal, to), "%s must be terminal", terminal)
		}
	}
}

func TestConfirmedNeverReturnsToPending(t *testing.T) {
	assert.False(t, CanTransition(StatusConfirmed, StatusPending))
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses() {
		got, ok := ParseStatus(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	for _, raw := range []string{"", "PENDING", "paid", "done", "refunded"} {
		_, ok := ParseStatus(raw)
		assert.False(t, ok, "raw=%q", raw)
	}
}

func TestMemberMayRequest(t *testing.T) {
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := from == StatusPending && to == StatusCanceled
			assert.Equal(t, want, MemberMayRequest(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionError(t *testing.T) {
	assert.Equal(t, "Cannot transition from canceled to confirmed",
		TransitionError(StatusCanceled, StatusConfirmed))
}
