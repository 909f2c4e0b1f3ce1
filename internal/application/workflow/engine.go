package workflow

import (
	"context"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// Transition is a requested status change for a travel application
type Transition struct {
	ApplicationID int64
	To            domainwf.State
	// CurrentApproverID must be set when To awaits an approver and is ignored otherwise
	CurrentApproverID *int64
	ActorID           *int64
	Action            string
	Notes             string
}

// StatusChange is a persisted status change
type StatusChange struct {
	ApplicationID     int64
	From              domainwf.State
	To                domainwf.State
	Action            string
	ActorID           *int64
	CurrentApproverID *int64
}

// Event converts the change into a status changed event
func (c *StatusChange) Event() *event.Event {
	payload := map[string]interface{}{
		"previous_status": c.From.String(),
		"new_status":      c.To.String(),
		"action":          c.Action,
	}
	if c.ActorID != nil {
		payload["actor_id"] = *c.ActorID
	}
	return event.NewEvent(event.TypeStatusChanged, c.ApplicationID, payload)
}

// StateEngine drives travel application statuses through the lifecycle state machine
type StateEngine interface {
	// Apply validates and persists a transition, joining the transaction in ctx if any
	Apply(ctx context.Context, t Transition) (*StatusChange, error)

	// TransitionState applies a transition in its own transaction and publishes
	// a status changed event after commit
	TransitionState(ctx context.Context, t Transition) (*StatusChange, error)

	// CanTransition reports whether an application may move to the target state
	CanTransition(ctx context.Context, applicationID int64, to domainwf.State) (bool, string, error)

	// GetStateMachine builds a state machine for the application's current status
	GetStateMachine(ctx context.Context, applicationID int64) (domainwf.StateMachine, error)

	// Publish emits status changed events for committed changes
	Publish(ctx context.Context, changes ...*StatusChange)
}

// ActResult reports the outcome of an approval action
type ActResult struct {
	Flow    *entity.TravelApprovalFlow
	Next    *entity.TravelApprovalFlow
	Changes []*StatusChange
}

// Final returns the last status change of the action
func (r *ActResult) Final() *StatusChange {
	if r == nil || len(r.Changes) == 0 {
		return nil
	}
	return r.Changes[len(r.Changes)-1]
}

// FlowEngine persists approval chains and advances them one action at a time
type FlowEngine interface {
	// CreateChain replaces the application's flows with the resolved chain and
	// moves the application to its first waiting status in one transaction
	CreateChain(ctx context.Context, app *entity.TravelApplication, result *approval.Result, actorID int64) ([]*StatusChange, error)

	// Act approves or rejects the actor's current pending flow
	Act(ctx context.Context, applicationID, actorID int64, action, notes string) (*ActResult, error)

	// SkipPending marks every remaining pending flow as skipped
	SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error)
}
