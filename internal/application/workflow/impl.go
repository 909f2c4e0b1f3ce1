package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

// stateEngine is the concrete implementation of StateEngine
type stateEngine struct {
	appRepo     port.ApplicationRepository
	tripRepo    port.TripRepository
	flowRepo    port.FlowRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	now         func() time.Time
}

// EngineOption configures the workflow engines
type EngineOption func(*engineOptions)

type engineOptions struct {
	dispatcher dispatcher.Dispatcher
	now        func() time.Time
}

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(o *engineOptions) {
		o.dispatcher = d
	}
}

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		o.now = now
	}
}

func applyOptions(opts []EngineOption) engineOptions {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewStateEngine creates a new application state engine
func NewStateEngine(
	appRepo port.ApplicationRepository,
	tripRepo port.TripRepository,
	flowRepo port.FlowRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) StateEngine {
	o := applyOptions(opts)
	return &stateEngine{
		appRepo:     appRepo,
		tripRepo:    tripRepo,
		flowRepo:    flowRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		dispatcher:  o.dispatcher,
		now:         o.now,
	}
}

// GetStateMachine builds a state machine for the application's current status
func (e *stateEngine) GetStateMachine(ctx context.Context, applicationID int64) (domainwf.StateMachine, error) {
	machine, _, err := e.load(ctx, applicationID)
	return machine, err
}

func (e *stateEngine) load(ctx context.Context, applicationID int64) (domainwf.StateMachine, *entity.TravelApplication, error) {
	app, err := e.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch application: %w", err)
	}
	if app == nil {
		return nil, nil, fmt.Errorf("application %d: %w", applicationID, port.ErrNotFound)
	}

	currentState := domainwf.State(app.Status)
	if !currentState.IsValid() {
		return nil, nil, fmt.Errorf("%w: application %d has status %q", domainwf.ErrInvalidState, applicationID, app.Status)
	}

	trips, err := e.tripRepo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch trips: %w", err)
	}
	app.Trips = trips

	facts := GuardFacts{
		Trips:    len(trips),
		Bookings: app.BookingCount(),
		PendingRequiredFlows: func(ctx context.Context) (int, error) {
			return e.flowRepo.CountPendingRequired(ctx, applicationID)
		},
	}
	return BuildTravelStateMachine(currentState, facts), app, nil
}

// CanTransition reports whether an application may move to the target state
func (e *stateEngine) CanTransition(ctx context.Context, applicationID int64, to domainwf.State) (bool, string, error) {
	machine, err := e.GetStateMachine(ctx, applicationID)
	if err != nil {
		return false, "", err
	}
	ok, reason := machine.CanTransitionTo(ctx, to)
	return ok, reason, nil
}

// Apply validates and persists a transition, joining the transaction in ctx if any
func (e *stateEngine) Apply(ctx context.Context, t Transition) (*StatusChange, error) {
	machine, _, err := e.load(ctx, t.ApplicationID)
	if err != nil {
		return nil, err
	}

	previousState := machine.State()
	if err := machine.TransitionTo(ctx, t.To); err != nil {
		return nil, fmt.Errorf("application %d: %w", t.ApplicationID, err)
	}

	var approverID *int64
	if t.To.AwaitsApprover() {
		if t.CurrentApproverID == nil {
			return nil, fmt.Errorf("application %d: %s requires a current approver", t.ApplicationID, t.To)
		}
		approverID = t.CurrentApproverID
	}

	if err := e.appRepo.UpdateStatus(ctx, t.ApplicationID, t.To.String(), approverID); err != nil {
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	history := &entity.ApprovalHistory{
		ApplicationID:  t.ApplicationID,
		ActorID:        t.ActorID,
		PreviousStatus: previousState.String(),
		NewStatus:      t.To.String(),
		Action:         t.Action,
		Notes:          t.Notes,
		Timestamp:      e.now(),
	}
	if err := e.historyRepo.Create(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to create history record: %w", err)
	}

	return &StatusChange{
		ApplicationID:     t.ApplicationID,
		From:              previousState,
		To:                t.To,
		Action:            t.Action,
		ActorID:           t.ActorID,
		CurrentApproverID: approverID,
	}, nil
}

// TransitionState applies a transition in its own transaction and publishes the change
func (e *stateEngine) TransitionState(ctx context.Context, t Transition) (*StatusChange, error) {
	var change *StatusChange
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		change, err = e.Apply(txCtx, t)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.Publish(ctx, change)
	return change, nil
}

// Publish emits status changed events for committed changes through the
// dispatcher's Publish, so its sync or async mode applies
func (e *stateEngine) Publish(ctx context.Context, changes ...*StatusChange) {
	if e.dispatcher == nil {
		return
	}
	events := make([]*event.Event, 0, len(changes))
	for _, c := range changes {
		if c != nil {
			events = append(events, c.Event())
		}
	}
	e.dispatcher.Publish(ctx, events...)
}
