package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

func withBookings() GuardFacts {
	return GuardFacts{Trips: 1, Bookings: 2}
}

func TestBuildTravelStateMachine_Adjacency(t *testing.T) {
	tests := []struct {
		from    domainwf.State
		to      domainwf.State
		allowed bool
	}{
		{domainwf.StateDraft, domainwf.StateSubmitted, true},
		{domainwf.StateDraft, domainwf.StatePendingManager, true},
		{domainwf.StateDraft, domainwf.StatePendingTravelDesk, true},
		{domainwf.StateDraft, domainwf.StateApprovedManager, false},
		{domainwf.StateSubmitted, domainwf.StatePendingCEO, true},
		{domainwf.StateSubmitted, domainwf.StateDraft, false},
		{domainwf.StatePendingManager, domainwf.StateApprovedManager, true},
		{domainwf.StatePendingManager, domainwf.StateRejectedManager, true},
		{domainwf.StatePendingManager, domainwf.StatePendingCHRO, false},
		{domainwf.StateApprovedManager, domainwf.StatePendingCHRO, true},
		{domainwf.StateApprovedManager, domainwf.StatePendingCEO, true},
		{domainwf.StateApprovedCHRO, domainwf.StatePendingCEO, true},
		{domainwf.StateApprovedCHRO, domainwf.StatePendingManager, false},
		{domainwf.StateApprovedCEO, domainwf.StatePendingTravelDesk, true},
		{domainwf.StateApprovedCEO, domainwf.StatePendingCHRO, false},
		{domainwf.StateRejectedCEO, domainwf.StateDraft, true},
		{domainwf.StateRejectedCHRO, domainwf.StateCancelled, false},
		{domainwf.StatePendingTravelDesk, domainwf.StateBookingInProgress, true},
		{domainwf.StatePendingTravelDesk, domainwf.StateBooked, false},
		{domainwf.StateBookingInProgress, domainwf.StateBooked, true},
		{domainwf.StateBooked, domainwf.StateCompleted, true},
		{domainwf.StateBookingInProgress, domainwf.StateCompleted, false},
		{domainwf.StateCompleted, domainwf.StateCancelled, false},
		{domainwf.StateCancelled, domainwf.StateDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			machine := BuildTravelStateMachine(tt.from, withBookings())
			ok, reason := machine.CanTransitionTo(context.Background(), tt.to)
			assert.Equal(t, tt.allowed, ok, reason)
			assert.Equal(t, tt.from, machine.State(), "CanTransitionTo must not mutate")
		})
	}
}

func TestBuildTravelStateMachine_CancelFromNonTerminal(t *testing.T) {
	for _, from := range []domainwf.State{
		domainwf.StateDraft, domainwf.StateSubmitted,
		domainwf.StatePendingManager, domainwf.StateApprovedManager,
		domainwf.StatePendingCHRO, domainwf.StateApprovedCHRO,
		domainwf.StatePendingCEO, domainwf.StateApprovedCEO,
		domainwf.StatePendingTravelDesk, domainwf.StateBookingInProgress, domainwf.StateBooked,
	} {
		machine := BuildTravelStateMachine(from, withBookings())
		ok, reason := machine.CanTransitionTo(context.Background(), domainwf.StateCancelled)
		assert.True(t, ok, "%s: %s", from, reason)
	}
}

func TestBuildTravelStateMachine_BookingGuard(t *testing.T) {
	noTrips := BuildTravelStateMachine(domainwf.StateDraft, GuardFacts{})
	ok, reason := noTrips.CanTransitionTo(context.Background(), domainwf.StateSubmitted)
	assert.False(t, ok)
	assert.Contains(t, reason, "no trip segments")

	noBookings := BuildTravelStateMachine(domainwf.StateDraft, GuardFacts{Trips: 1})
	ok, reason = noBookings.CanTransitionTo(context.Background(), domainwf.StatePendingManager)
	assert.False(t, ok)
	assert.Contains(t, reason, "no bookings")

	err := noBookings.TransitionTo(context.Background(), domainwf.StatePendingCEO)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainwf.ErrGuardFailed))

	ok, _ = noBookings.CanTransitionTo(context.Background(), domainwf.StateCancelled)
	assert.True(t, ok, "cancellation is not guarded by bookings")
}

func TestBuildTravelStateMachine_PendingFlowsGuard(t *testing.T) {
	pending := 1
	facts := withBookings()
	facts.PendingRequiredFlows = func(ctx context.Context) (int, error) { return pending, nil }

	machine := BuildTravelStateMachine(domainwf.StateApprovedManager, facts)
	ok, reason := machine.CanTransitionTo(context.Background(), domainwf.StatePendingTravelDesk)
	assert.False(t, ok)
	assert.Contains(t, reason, "1 required approvals still pending")

	pending = 0
	ok, _ = machine.CanTransitionTo(context.Background(), domainwf.StatePendingTravelDesk)
	assert.True(t, ok)

	facts.PendingRequiredFlows = func(ctx context.Context) (int, error) { return 0, errors.New("locked") }
	machine = BuildTravelStateMachine(domainwf.StateApprovedCEO, facts)
	ok, reason = machine.CanTransitionTo(context.Background(), domainwf.StatePendingTravelDesk)
	assert.False(t, ok)
	assert.Contains(t, reason, "locked")
}

func TestBuildTravelStateMachine_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	facts := withBookings()
	facts.PendingRequiredFlows = func(ctx context.Context) (int, error) { return 0, nil }
	machine := BuildTravelStateMachine(domainwf.StateDraft, facts)

	for _, to := range []domainwf.State{
		domainwf.StateSubmitted,
		domainwf.StatePendingManager,
		domainwf.StateApprovedManager,
		domainwf.StatePendingCEO,
		domainwf.StateApprovedCEO,
		domainwf.StatePendingTravelDesk,
		domainwf.StateBookingInProgress,
		domainwf.StateBooked,
		domainwf.StateCompleted,
	} {
		require.NoError(t, machine.TransitionTo(ctx, to), "to %s", to)
	}
	assert.True(t, machine.State().IsTerminal())
	assert.Empty(t, machine.PermittedStates())
}
