package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// Logger is the logging dependency of the application services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Resolver computes the approval chain for an application
type Resolver interface {
	Resolve(ctx context.Context, app *entity.TravelApplication, requester *entity.User) (*approval.Result, error)
}

// SubmitResult is the outcome of a submission
type SubmitResult struct {
	Application *entity.TravelApplication `json:"application"`
	Resolution  *approval.Result          `json:"resolution"`
}

// ActionResult is the outcome of an approval action
type ActionResult struct {
	Application *entity.TravelApplication  `json:"application"`
	Flow        *entity.TravelApprovalFlow `json:"flow"`
	Next        *entity.TravelApprovalFlow `json:"next,omitempty"`
}

// TravelService handles travel application submission, approvals and lifecycle
type TravelService interface {
	// Get returns the application with its trips and bookings
	Get(ctx context.Context, applicationID int64) (*entity.TravelApplication, error)

	// List returns applications newest first, optionally filtered by status
	List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error)

	// Flows returns the persisted approval flows in sequence order
	Flows(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error)

	// History returns the status history of the application
	History(ctx context.Context, applicationID int64) ([]*entity.ApprovalHistory, error)

	// Preview resolves the approval chain without persisting anything
	Preview(ctx context.Context, applicationID int64) (*approval.Result, error)

	// Submit resolves and persists the approval chain for a draft application
	Submit(ctx context.Context, applicationID, actorID int64) (*SubmitResult, error)

	// Act approves or rejects the actor's pending approval
	Act(ctx context.Context, applicationID, actorID int64, action, notes string) (*ActionResult, error)

	// Cancel withdraws a non-terminal application and skips its pending approvals
	Cancel(ctx context.Context, applicationID, actorID int64, notes string) (*entity.TravelApplication, error)

	// ReturnToDraft reopens a rejected application for editing
	ReturnToDraft(ctx context.Context, applicationID, actorID int64, notes string) (*entity.TravelApplication, error)

	// StartBooking moves an approved application into booking
	StartBooking(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error)

	// MarkBooked records that every booking has been made
	MarkBooked(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error)

	// Complete closes a booked application
	Complete(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error)
}

type travelServiceImpl struct {
	appRepo     port.ApplicationRepository
	tripRepo    port.TripRepository
	userRepo    port.UserRepository
	roleRepo    port.RoleRepository
	flowRepo    port.FlowRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	resolver    Resolver
	states      workflow.StateEngine
	flows       workflow.FlowEngine
	dispatcher  dispatcher.Dispatcher
	logger      Logger
}

// NewTravelService creates a new TravelService
func NewTravelService(
	appRepo port.ApplicationRepository,
	tripRepo port.TripRepository,
	userRepo port.UserRepository,
	roleRepo port.RoleRepository,
	flowRepo port.FlowRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	resolver Resolver,
	states workflow.StateEngine,
	flows workflow.FlowEngine,
	dispatcher dispatcher.Dispatcher,
	logger Logger,
) TravelService {
	return &travelServiceImpl{
		appRepo:     appRepo,
		tripRepo:    tripRepo,
		userRepo:    userRepo,
		roleRepo:    roleRepo,
		flowRepo:    flowRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		resolver:    resolver,
		states:      states,
		flows:       flows,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Get returns the application with its trips and bookings
func (s *travelServiceImpl) Get(ctx context.Context, applicationID int64) (*entity.TravelApplication, error) {
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	trips, err := s.tripRepo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trips: %w", err)
	}
	app.Trips = trips
	return app, nil
}

// List returns applications newest first, optionally filtered by status
func (s *travelServiceImpl) List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error) {
	if status != "" && !domainwf.State(status).IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", approval.ErrValidation, status)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.appRepo.List(ctx, status, limit, offset)
}

// Flows returns the persisted approval flows in sequence order
func (s *travelServiceImpl) Flows(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error) {
	if _, err := s.loadApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return s.flowRepo.ListByApplication(ctx, applicationID)
}

// History returns the status history of the application
func (s *travelServiceImpl) History(ctx context.Context, applicationID int64) ([]*entity.ApprovalHistory, error) {
	if _, err := s.loadApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByApplication(ctx, applicationID)
}

// Preview resolves the approval chain without persisting anything
func (s *travelServiceImpl) Preview(ctx context.Context, applicationID int64) (result *approval.Result, err error) {
	ctx, done := trackOperation(ctx, "TravelService.Preview", attribute.Int64("application.id", applicationID))
	defer func() { done(err) }()

	app, requester, err := s.loadForResolution(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, app, requester)
}

// Submit resolves the approval chain outside the transaction, then persists the
// chain and the first waiting status atomically. Events are published after commit.
func (s *travelServiceImpl) Submit(ctx context.Context, applicationID, actorID int64) (out *SubmitResult, err error) {
	ctx, done := trackOperation(ctx, "TravelService.Submit",
		attribute.Int64("application.id", applicationID),
		attribute.Int64("actor.id", actorID),
	)
	defer func() { done(err) }()

	s.logger.Info("Submitting travel application", "application_id", applicationID, "actor_id", actorID)

	app, requester, err := s.loadForResolution(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.EmployeeID != actorID {
		return nil, fmt.Errorf("%w: only the requester may submit application %d", approval.ErrPermission, applicationID)
	}
	if app.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: application %d is %s", domainwf.ErrInvalidTransition, applicationID, app.Status)
	}

	result, err := s.resolver.Resolve(ctx, app, requester)
	if err != nil {
		s.logger.Error("Failed to resolve approval chain", "error", err, "application_id", applicationID)
		return nil, err
	}

	if _, err := s.flows.CreateChain(ctx, app, result, actorID); err != nil {
		s.logger.Error("Failed to persist approval chain", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.dispatcher.Publish(ctx, submissionEvents(app, result)...)

	updated, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Travel application submitted",
		"application_id", applicationID,
		"status", updated.Status,
		"self_approved", result.SelfApproved,
		"chain_length", len(result.Chain),
	)

	return &SubmitResult{Application: updated, Resolution: result}, nil
}

// Act approves or rejects the actor's pending approval
func (s *travelServiceImpl) Act(ctx context.Context, applicationID, actorID int64, action, notes string) (out *ActionResult, err error) {
	ctx, done := trackOperation(ctx, "TravelService.Act",
		attribute.Int64("application.id", applicationID),
		attribute.Int64("actor.id", actorID),
		attribute.String("approval.action", action),
	)
	defer func() { done(err) }()

	if _, err := s.loadApplication(ctx, applicationID); err != nil {
		return nil, err
	}

	acted, err := s.flows.Act(ctx, applicationID, actorID, action, notes)
	if err != nil {
		s.logger.Warn("Approval action refused", "error", err, "application_id", applicationID, "actor_id", actorID, "action", action)
		return nil, err
	}

	app, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Publish(ctx, actionEvents(app, acted, notes)...)

	s.logger.Info("Approval action recorded",
		"application_id", applicationID,
		"actor_id", actorID,
		"action", action,
		"level", acted.Flow.ApprovalLevel.String(),
		"status", app.Status,
	)

	return &ActionResult{Application: app, Flow: acted.Flow, Next: acted.Next}, nil
}

// Cancel withdraws a non-terminal application and skips its pending approvals
func (s *travelServiceImpl) Cancel(ctx context.Context, applicationID, actorID int64, notes string) (*entity.TravelApplication, error) {
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.EmployeeID != actorID {
		return nil, fmt.Errorf("%w: only the requester may cancel application %d", approval.ErrPermission, applicationID)
	}
	previousApprover := app.CurrentApproverID

	var change *workflow.StatusChange
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.flowRepo.SkipPending(txCtx, applicationID, "application cancelled"); err != nil {
			return fmt.Errorf("failed to skip pending approvals: %w", err)
		}
		var err error
		change, err = s.states.Apply(txCtx, workflow.Transition{
			ApplicationID: applicationID,
			To:            domainwf.StateCancelled,
			ActorID:       &actorID,
			Action:        entity.HistoryActionCancel,
			Notes:         notes,
		})
		return err
	})
	if err != nil {
		s.logger.Error("Failed to cancel application", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.states.Publish(ctx, change)
	payload := map[string]interface{}{
		"employee_id":     app.EmployeeID,
		"previous_status": change.From.String(),
	}
	if previousApprover != nil {
		payload["approver_id"] = *previousApprover
	}
	s.dispatcher.Publish(ctx, event.NewEvent(event.TypeApplicationCancelled, applicationID, payload))

	s.logger.Info("Travel application cancelled", "application_id", applicationID, "previous_status", change.From.String())
	return s.Get(ctx, applicationID)
}

// ReturnToDraft reopens a rejected application for editing
func (s *travelServiceImpl) ReturnToDraft(ctx context.Context, applicationID, actorID int64, notes string) (*entity.TravelApplication, error) {
	app, err := s.loadApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.EmployeeID != actorID {
		return nil, fmt.Errorf("%w: only the requester may reopen application %d", approval.ErrPermission, applicationID)
	}
	return s.transition(ctx, applicationID, actorID, domainwf.StateDraft, entity.HistoryActionReturnDraft, notes)
}

// StartBooking moves an approved application into booking
func (s *travelServiceImpl) StartBooking(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error) {
	if err := s.requireTravelDesk(ctx, actorID); err != nil {
		return nil, err
	}
	return s.transition(ctx, applicationID, actorID, domainwf.StateBookingInProgress, entity.HistoryActionBookingStart, "")
}

// MarkBooked records that every booking has been made
func (s *travelServiceImpl) MarkBooked(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error) {
	if err := s.requireTravelDesk(ctx, actorID); err != nil {
		return nil, err
	}
	return s.transition(ctx, applicationID, actorID, domainwf.StateBooked, entity.HistoryActionBooked, "")
}

// Complete closes a booked application
func (s *travelServiceImpl) Complete(ctx context.Context, applicationID, actorID int64) (*entity.TravelApplication, error) {
	if err := s.requireTravelDesk(ctx, actorID); err != nil {
		return nil, err
	}
	return s.transition(ctx, applicationID, actorID, domainwf.StateCompleted, entity.HistoryActionComplete, "")
}

func (s *travelServiceImpl) transition(ctx context.Context, applicationID, actorID int64, to domainwf.State, action, notes string) (*entity.TravelApplication, error) {
	change, err := s.states.TransitionState(ctx, workflow.Transition{
		ApplicationID: applicationID,
		To:            to,
		ActorID:       &actorID,
		Action:        action,
		Notes:         notes,
	})
	if err != nil {
		s.logger.Warn("Transition refused", "error", err, "application_id", applicationID, "to", to.String())
		return nil, err
	}
	s.logger.Info("Application status changed",
		"application_id", applicationID,
		"from", change.From.String(),
		"to", change.To.String(),
		"actor_id", actorID,
	)
	return s.Get(ctx, applicationID)
}

// requireTravelDesk checks that the actor holds an active Travel Desk role
func (s *travelServiceImpl) requireTravelDesk(ctx context.Context, actorID int64) error {
	holders, err := s.roleRepo.ListActiveHolders(ctx, entity.RoleTravelDesk)
	if err != nil {
		return fmt.Errorf("failed to load travel desk: %w", err)
	}
	for _, u := range holders {
		if u.ID == actorID {
			return nil
		}
	}
	return fmt.Errorf("%w: user %d is not on the travel desk", approval.ErrPermission, actorID)
}

func (s *travelServiceImpl) loadApplication(ctx context.Context, applicationID int64) (*entity.TravelApplication, error) {
	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("application %d: %w", applicationID, port.ErrNotFound)
	}
	return app, nil
}

// loadForResolution loads the application with bookings and its requester
func (s *travelServiceImpl) loadForResolution(ctx context.Context, applicationID int64) (*entity.TravelApplication, *entity.User, error) {
	app, err := s.Get(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if app.BookingCount() == 0 {
		return nil, nil, fmt.Errorf("%w: application %d has no bookings", approval.ErrValidation, applicationID)
	}
	requester, err := s.userRepo.GetByID(ctx, app.EmployeeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load requester: %w", err)
	}
	if requester == nil {
		return nil, nil, fmt.Errorf("requester %d: %w", app.EmployeeID, port.ErrNotFound)
	}
	return app, requester, nil
}

func submissionEvents(app *entity.TravelApplication, result *approval.Result) []*event.Event {
	submitted := event.NewEvent(event.TypeApplicationSubmitted, app.ID, map[string]interface{}{
		"employee_id":   app.EmployeeID,
		"self_approved": result.SelfApproved,
		"chain_length":  len(result.Chain),
		"primary_mode":  result.PrimaryMode,
	})
	events := []*event.Event{submitted}

	if result.SelfApproved {
		return append(events, event.NewEventWithCorrelation(event.TypeApplicationSelfApproved, app.ID, map[string]interface{}{
			"employee_id": app.EmployeeID,
		}, submitted.CorrelationID))
	}

	if first, ok := result.FirstApprover(); ok {
		events = append(events, event.NewEventWithCorrelation(event.TypeApprovalRequested, app.ID, map[string]interface{}{
			"employee_id":    app.EmployeeID,
			"approver_id":    first.User.ID,
			"approval_level": first.Level.String(),
			"sequence":       first.Sequence,
		}, submitted.CorrelationID))
	}
	return events
}

func actionEvents(app *entity.TravelApplication, acted *workflow.ActResult, notes string) []*event.Event {
	flow := acted.Flow
	if flow.Status == entity.FlowStatusRejected {
		return []*event.Event{event.NewEvent(event.TypeApplicationRejected, app.ID, map[string]interface{}{
			"employee_id":    app.EmployeeID,
			"approver_id":    flow.ApproverID,
			"approval_level": flow.ApprovalLevel.String(),
			"notes":          notes,
		})}
	}

	completed := event.NewEvent(event.TypeApprovalCompleted, app.ID, map[string]interface{}{
		"employee_id":    app.EmployeeID,
		"approver_id":    flow.ApproverID,
		"approval_level": flow.ApprovalLevel.String(),
		"final":          acted.Next == nil,
	})
	events := []*event.Event{completed}

	if next := acted.Next; next != nil {
		events = append(events, event.NewEventWithCorrelation(event.TypeApprovalRequested, app.ID, map[string]interface{}{
			"employee_id":    app.EmployeeID,
			"approver_id":    next.ApproverID,
			"approval_level": next.ApprovalLevel.String(),
			"sequence":       next.Sequence,
		}, completed.CorrelationID))
	}
	return events
}
