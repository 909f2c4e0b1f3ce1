package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// flowEngine is the concrete implementation of FlowEngine
type flowEngine struct {
	appRepo   port.ApplicationRepository
	flowRepo  port.FlowRepository
	txManager port.TransactionManager
	states    StateEngine
	now       func() time.Time
}

// NewFlowEngine creates a new approval flow engine
func NewFlowEngine(
	appRepo port.ApplicationRepository,
	flowRepo port.FlowRepository,
	txManager port.TransactionManager,
	states StateEngine,
	opts ...EngineOption,
) FlowEngine {
	o := applyOptions(opts)
	return &flowEngine{
		appRepo:   appRepo,
		flowRepo:  flowRepo,
		txManager: txManager,
		states:    states,
		now:       o.now,
	}
}

// CreateChain replaces the application's flows with the resolved chain
func (e *flowEngine) CreateChain(ctx context.Context, app *entity.TravelApplication, result *approval.Result, actorID int64) ([]*StatusChange, error) {
	if app == nil || result == nil {
		return nil, fmt.Errorf("%w: application and resolution are required", approval.ErrValidation)
	}
	if !result.SelfApproved && len(result.Chain) == 0 {
		return nil, fmt.Errorf("%w: resolution for application %d has no approvers", approval.ErrConfiguration, app.ID)
	}

	now := e.now()
	actor := actorID
	var changes []*StatusChange

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.flowRepo.DeleteByApplication(txCtx, app.ID); err != nil {
			return fmt.Errorf("failed to clear approval flows: %w", err)
		}
		if err := e.appRepo.MarkSubmitted(txCtx, app.ID, now, result.SelfApproved); err != nil {
			return fmt.Errorf("failed to mark application submitted: %w", err)
		}

		submitted, err := e.states.Apply(txCtx, Transition{
			ApplicationID: app.ID,
			To:            domainwf.StateSubmitted,
			ActorID:       &actor,
			Action:        entity.HistoryActionSubmit,
			Notes:         strings.Join(result.AdvanceBookingNotes, "; "),
		})
		if err != nil {
			return err
		}
		changes = append(changes, submitted)

		next, err := e.persistChain(txCtx, app, result, now)
		if err != nil {
			return err
		}
		changes = append(changes, next)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.states.Publish(ctx, changes...)
	return changes, nil
}

// persistChain inserts the flow rows and moves the application to its first waiting state
func (e *flowEngine) persistChain(ctx context.Context, app *entity.TravelApplication, result *approval.Result, now time.Time) (*StatusChange, error) {
	if result.SelfApproved {
		flow := &entity.TravelApprovalFlow{
			ApplicationID:   app.ID,
			ApproverID:      app.EmployeeID,
			ApprovalLevel:   entity.LevelSelfApproval,
			Sequence:        1,
			Status:          entity.FlowStatusApproved,
			CanView:         true,
			TriggeredByRule: "self_approval",
			ApprovedAt:      &now,
		}
		if err := e.flowRepo.Create(ctx, flow); err != nil {
			return nil, fmt.Errorf("failed to create self approval flow: %w", err)
		}
		return e.states.Apply(ctx, Transition{
			ApplicationID: app.ID,
			To:            domainwf.StatePendingTravelDesk,
			ActorID:       &app.EmployeeID,
			Action:        entity.HistoryActionSelfApprove,
		})
	}

	for _, entry := range result.Chain {
		flow := &entity.TravelApprovalFlow{
			ApplicationID:   app.ID,
			ApproverID:      entry.User.ID,
			ApprovalLevel:   entry.Level,
			Sequence:        entry.Sequence,
			Status:          entity.FlowStatusPending,
			CanView:         entry.CanView,
			CanApprove:      entry.CanApprove,
			IsRequired:      entry.IsRequired,
			TriggeredByRule: entry.TriggeredByRule,
		}
		if err := e.flowRepo.Create(ctx, flow); err != nil {
			return nil, fmt.Errorf("failed to create approval flow: %w", err)
		}
	}

	first := result.Chain[0]
	approverID := first.User.ID
	return e.states.Apply(ctx, Transition{
		ApplicationID:     app.ID,
		To:                domainwf.PendingStateFor(first.Level),
		CurrentApproverID: &approverID,
		Action:            entity.HistoryActionAdvance,
	})
}

// Act approves or rejects the actor's current pending flow. Only the pending
// flow with the lowest sequence is actionable.
func (e *flowEngine) Act(ctx context.Context, applicationID, actorID int64, action, notes string) (*ActResult, error) {
	var flowStatus string
	switch action {
	case entity.ActionApprove:
		flowStatus = entity.FlowStatusApproved
	case entity.ActionReject:
		flowStatus = entity.FlowStatusRejected
	default:
		return nil, fmt.Errorf("%w: unknown action %q", approval.ErrValidation, action)
	}

	now := e.now()
	actor := actorID
	result := &ActResult{}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.flowRepo.FirstPending(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("failed to find pending approval: %w", err)
		}
		if current == nil || current.ApproverID != actorID || !current.CanApprove {
			return fmt.Errorf("%w: user %d has no pending approval on application %d",
				approval.ErrPermission, actorID, applicationID)
		}

		updated, err := e.flowRepo.UpdateStatusIfPending(txCtx, current.ID, flowStatus, notes, now)
		if err != nil {
			return fmt.Errorf("failed to update approval flow: %w", err)
		}
		if !updated {
			return fmt.Errorf("%w: approval %d was already acted on", approval.ErrPermission, current.ID)
		}
		current.Status = flowStatus
		current.Notes = notes
		current.ApprovedAt = &now
		result.Flow = current

		if action == entity.ActionReject {
			// later steps close with the rejection; none stays pending without a current approver
			if _, err := e.flowRepo.SkipPending(txCtx, applicationID, "rejected at "+current.ApprovalLevel.String()); err != nil {
				return fmt.Errorf("failed to close remaining approvals: %w", err)
			}
			change, err := e.states.Apply(txCtx, Transition{
				ApplicationID: applicationID,
				To:            domainwf.State(current.ApprovalLevel.RejectedStatus()),
				ActorID:       &actor,
				Action:        entity.HistoryActionReject,
				Notes:         notes,
			})
			if err != nil {
				return err
			}
			result.Changes = append(result.Changes, change)
			return nil
		}

		approved, err := e.states.Apply(txCtx, Transition{
			ApplicationID: applicationID,
			To:            domainwf.State(current.ApprovalLevel.ApprovedStatus()),
			ActorID:       &actor,
			Action:        entity.HistoryActionApprove,
			Notes:         notes,
		})
		if err != nil {
			return err
		}
		result.Changes = append(result.Changes, approved)

		next, err := e.flowRepo.FirstPending(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("failed to find next approval: %w", err)
		}
		advance := Transition{
			ApplicationID: applicationID,
			To:            domainwf.StatePendingTravelDesk,
			Action:        entity.HistoryActionAdvance,
		}
		if next != nil {
			approverID := next.ApproverID
			advance.To = domainwf.PendingStateFor(next.ApprovalLevel)
			advance.CurrentApproverID = &approverID
		}
		change, err := e.states.Apply(txCtx, advance)
		if err != nil {
			return err
		}
		result.Next = next
		result.Changes = append(result.Changes, change)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.states.Publish(ctx, result.Changes...)
	return result, nil
}

// SkipPending marks every remaining pending flow as skipped
func (e *flowEngine) SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error) {
	var skipped int64
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		skipped, err = e.flowRepo.SkipPending(txCtx, applicationID, notes)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to skip pending approvals: %w", err)
	}
	return skipped, nil
}
