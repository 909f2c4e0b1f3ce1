package workflow

import (
	"context"
	"fmt"

	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// GuardFacts supplies the application data the transition guards inspect
type GuardFacts struct {
	Trips    int
	Bookings int
	// PendingRequiredFlows counts required flows still awaiting action
	PendingRequiredFlows func(ctx context.Context) (int, error)
}

// BuildTravelStateMachine creates a state machine configured for the travel application lifecycle
func BuildTravelStateMachine(initialState domainwf.State, facts GuardFacts) domainwf.StateMachine {
	builder := domainwf.NewBuilder()
	var machine domainwf.StateMachine

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.StateSubmitted).
		Permit(domainwf.StatePendingManager).
		Permit(domainwf.StatePendingCHRO).
		Permit(domainwf.StatePendingCEO).
		Permit(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateCancelled)

	builder.Configure(domainwf.StateSubmitted).
		Permit(domainwf.StatePendingManager).
		Permit(domainwf.StatePendingCHRO).
		Permit(domainwf.StatePendingCEO).
		Permit(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateCancelled)

	// Manager level
	builder.Configure(domainwf.StatePendingManager).
		Permit(domainwf.StateApprovedManager).
		Permit(domainwf.StateRejectedManager).
		Permit(domainwf.StateCancelled)
	builder.Configure(domainwf.StateApprovedManager).
		Permit(domainwf.StatePendingCHRO).
		Permit(domainwf.StatePendingCEO).
		Permit(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateCancelled)

	// CHRO level
	builder.Configure(domainwf.StatePendingCHRO).
		Permit(domainwf.StateApprovedCHRO).
		Permit(domainwf.StateRejectedCHRO).
		Permit(domainwf.StateCancelled)
	builder.Configure(domainwf.StateApprovedCHRO).
		Permit(domainwf.StatePendingCEO).
		Permit(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateCancelled)

	// CEO level
	builder.Configure(domainwf.StatePendingCEO).
		Permit(domainwf.StateApprovedCEO).
		Permit(domainwf.StateRejectedCEO).
		Permit(domainwf.StateCancelled)
	builder.Configure(domainwf.StateApprovedCEO).
		Permit(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateCancelled)

	// Rejections end the submission cycle; the requester may rework a draft
	builder.Configure(domainwf.StateRejectedManager).Permit(domainwf.StateDraft)
	builder.Configure(domainwf.StateRejectedCHRO).Permit(domainwf.StateDraft)
	builder.Configure(domainwf.StateRejectedCEO).Permit(domainwf.StateDraft)

	// Travel desk handoff
	builder.Configure(domainwf.StatePendingTravelDesk).
		Permit(domainwf.StateBookingInProgress).
		Permit(domainwf.StateCancelled)
	builder.Configure(domainwf.StateBookingInProgress).
		Permit(domainwf.StateBooked).
		Permit(domainwf.StateCancelled)
	builder.Configure(domainwf.StateBooked).
		PermitIf(domainwf.StateCompleted, func(ctx context.Context) (bool, string) {
			if current := machine.State(); current != domainwf.StateBooked {
				return false, fmt.Sprintf("application must be booked to complete, is %s", current)
			}
			return true, ""
		}).
		Permit(domainwf.StateCancelled)

	// COMPLETED and CANCELLED are terminal states - no outgoing transitions

	hasBookings := func(ctx context.Context) (bool, string) {
		if facts.Trips == 0 {
			return false, "application has no trip segments"
		}
		if facts.Bookings == 0 {
			return false, "application has no bookings"
		}
		return true, ""
	}
	for _, s := range []domainwf.State{
		domainwf.StateSubmitted,
		domainwf.StatePendingManager,
		domainwf.StatePendingCHRO,
		domainwf.StatePendingCEO,
		domainwf.StatePendingTravelDesk,
	} {
		builder.GuardEntry(s, hasBookings)
	}

	builder.GuardEntry(domainwf.StatePendingTravelDesk, func(ctx context.Context) (bool, string) {
		if facts.PendingRequiredFlows == nil {
			return true, ""
		}
		pending, err := facts.PendingRequiredFlows(ctx)
		if err != nil {
			return false, fmt.Sprintf("failed to count pending approvals: %v", err)
		}
		if pending > 0 {
			return false, fmt.Sprintf("%d required approvals still pending", pending)
		}
		return true, ""
	})

	machine = builder.Build(initialState)
	return machine
}
