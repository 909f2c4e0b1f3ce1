package workflow

import "context"

// StateMachine tracks the current status of one application and validates
// transitions against the adjacency table and guard rules. It never persists
// anything; callers commit the new status after a successful transition.
type StateMachine interface {
	// State returns the current state
	State() State

	// CanTransitionTo reports whether moving to the target state is legal,
	// with a human-readable reason when it is not. It never mutates state.
	CanTransitionTo(ctx context.Context, to State) (bool, string)

	// TransitionTo moves the machine to the target state if legal
	TransitionTo(ctx context.Context, to State) error

	// PermittedStates returns the adjacent states reachable from the current state, ignoring guards
	PermittedStates() []State
}
