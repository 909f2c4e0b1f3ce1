package workflow

import "github.com/garyjia/travel-approval/internal/domain/entity"

// State represents a travel application status in the approval lifecycle
type State string

const (
	StateDraft             State = entity.StatusDraft
	StateSubmitted         State = entity.StatusSubmitted
	StatePendingManager    State = entity.StatusPendingManager
	StateApprovedManager   State = entity.StatusApprovedManager
	StateRejectedManager   State = entity.StatusRejectedManager
	StatePendingCHRO       State = entity.StatusPendingCHRO
	StateApprovedCHRO      State = entity.StatusApprovedCHRO
	StateRejectedCHRO      State = entity.StatusRejectedCHRO
	StatePendingCEO        State = entity.StatusPendingCEO
	StateApprovedCEO       State = entity.StatusApprovedCEO
	StateRejectedCEO       State = entity.StatusRejectedCEO
	StatePendingTravelDesk State = entity.StatusPendingTravelDesk
	StateBookingInProgress State = entity.StatusBookingInProgress
	StateBooked            State = entity.StatusBooked
	StateCompleted         State = entity.StatusCompleted
	StateCancelled         State = entity.StatusCancelled
)

var validStates = map[State]bool{
	StateDraft:             true,
	StateSubmitted:         true,
	StatePendingManager:    true,
	StateApprovedManager:   true,
	StateRejectedManager:   true,
	StatePendingCHRO:       true,
	StateApprovedCHRO:      true,
	StateRejectedCHRO:      true,
	StatePendingCEO:        true,
	StateApprovedCEO:       true,
	StateRejectedCEO:       true,
	StatePendingTravelDesk: true,
	StateBookingInProgress: true,
	StateBooked:            true,
	StateCompleted:         true,
	StateCancelled:         true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateCancelled: true,
}

// approvalStates are the states in which a current approver must be set
var approvalStates = map[State]bool{
	StatePendingManager: true,
	StatePendingCHRO:    true,
	StatePendingCEO:     true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid application status
func (s State) IsValid() bool {
	return validStates[s]
}

// AwaitsApprover returns true if an approver must act before the application can advance
func (s State) AwaitsApprover() bool {
	return approvalStates[s]
}

// IsPending returns true for submitted and every pending_* state
func (s State) IsPending() bool {
	return s == StateSubmitted || approvalStates[s] || s == StatePendingTravelDesk
}

// PendingStateFor returns the pending state an approval level waits in
func PendingStateFor(level entity.ApprovalLevel) State {
	return State(level.PendingStatus())
}
