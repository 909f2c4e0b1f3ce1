package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
	domainwf "github.com/garyjia/travel-approval/internal/domain/workflow"
)

type mockAppRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.TravelApplication, error)
	listArgs    []interface{}
}

func (m *mockAppRepo) Create(ctx context.Context, app *entity.TravelApplication) error { return nil }

func (m *mockAppRepo) GetByID(ctx context.Context, id int64) (*entity.TravelApplication, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockAppRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error) {
	m.listArgs = []interface{}{status, limit, offset}
	return []*entity.TravelApplication{{ID: testAppID, Status: entity.StatusDraft}}, nil
}

func (m *mockAppRepo) UpdateStatus(ctx context.Context, id int64, status string, currentApproverID *int64) error {
	return nil
}

func (m *mockAppRepo) MarkSubmitted(ctx context.Context, id int64, submittedAt time.Time, selfApproved bool) error {
	return nil
}

type mockTripRepo struct {
	trips []*entity.TripSegment
}

func (m *mockTripRepo) Create(ctx context.Context, trip *entity.TripSegment) error { return nil }

func (m *mockTripRepo) CreateBooking(ctx context.Context, booking *entity.Booking) error { return nil }

func (m *mockTripRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TripSegment, error) {
	return m.trips, nil
}

type mockUserRepo struct {
	users map[int64]*entity.User
	err   error
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return nil, nil
}

func (m *mockUserRepo) SetReportingManager(ctx context.Context, userID int64, managerID *int64) error {
	return nil
}

type mockRoleRepo struct {
	holders map[string][]*entity.User
}

func (m *mockRoleRepo) Create(ctx context.Context, role *entity.Role) error { return nil }

func (m *mockRoleRepo) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	return nil, nil
}

func (m *mockRoleRepo) Assign(ctx context.Context, assignment *entity.UserRole) error { return nil }

func (m *mockRoleRepo) ListActiveHolders(ctx context.Context, roleName string) ([]*entity.User, error) {
	return m.holders[roleName], nil
}

type mockFlowRepo struct {
	flows       []*entity.TravelApprovalFlow
	skipped     int
	skipPending func(ctx context.Context, applicationID int64, notes string) (int64, error)
}

func (m *mockFlowRepo) Create(ctx context.Context, flow *entity.TravelApprovalFlow) error { return nil }

func (m *mockFlowRepo) DeleteByApplication(ctx context.Context, applicationID int64) error {
	return nil
}

func (m *mockFlowRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error) {
	return m.flows, nil
}

func (m *mockFlowRepo) FirstPending(ctx context.Context, applicationID int64) (*entity.TravelApprovalFlow, error) {
	return nil, nil
}

func (m *mockFlowRepo) UpdateStatusIfPending(ctx context.Context, id int64, status, notes string, actedAt time.Time) (bool, error) {
	return true, nil
}

func (m *mockFlowRepo) CountPendingRequired(ctx context.Context, applicationID int64) (int, error) {
	return 0, nil
}

func (m *mockFlowRepo) SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error) {
	m.skipped++
	if m.skipPending != nil {
		return m.skipPending(ctx, applicationID, notes)
	}
	return 0, nil
}

type mockHistoryRepo struct {
	history []*entity.ApprovalHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	return nil
}

func (m *mockHistoryRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.ApprovalHistory, error) {
	return m.history, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, app *entity.TravelApplication, requester *entity.User) (*approval.Result, error)
	calls       int
}

func (m *mockResolver) Resolve(ctx context.Context, app *entity.TravelApplication, requester *entity.User) (*approval.Result, error) {
	m.calls++
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, app, requester)
	}
	return &approval.Result{}, nil
}

type mockStateEngine struct {
	applyFunc      func(ctx context.Context, t workflow.Transition) (*workflow.StatusChange, error)
	transitions    []workflow.Transition
	publishedCount int
}

func (m *mockStateEngine) Apply(ctx context.Context, t workflow.Transition) (*workflow.StatusChange, error) {
	m.transitions = append(m.transitions, t)
	if m.applyFunc != nil {
		return m.applyFunc(ctx, t)
	}
	return &workflow.StatusChange{ApplicationID: t.ApplicationID, From: domainwf.StateDraft, To: t.To, Action: t.Action, ActorID: t.ActorID}, nil
}

func (m *mockStateEngine) TransitionState(ctx context.Context, t workflow.Transition) (*workflow.StatusChange, error) {
	return m.Apply(ctx, t)
}

func (m *mockStateEngine) CanTransition(ctx context.Context, applicationID int64, to domainwf.State) (bool, string, error) {
	return true, "", nil
}

func (m *mockStateEngine) GetStateMachine(ctx context.Context, applicationID int64) (domainwf.StateMachine, error) {
	return nil, nil
}

func (m *mockStateEngine) Publish(ctx context.Context, changes ...*workflow.StatusChange) {
	m.publishedCount += len(changes)
}

type mockFlowEngine struct {
	createChainFunc func(ctx context.Context, app *entity.TravelApplication, result *approval.Result, actorID int64) ([]*workflow.StatusChange, error)
	actFunc         func(ctx context.Context, applicationID, actorID int64, action, notes string) (*workflow.ActResult, error)
	chainCalls      int
}

func (m *mockFlowEngine) CreateChain(ctx context.Context, app *entity.TravelApplication, result *approval.Result, actorID int64) ([]*workflow.StatusChange, error) {
	m.chainCalls++
	if m.createChainFunc != nil {
		return m.createChainFunc(ctx, app, result, actorID)
	}
	return nil, nil
}

func (m *mockFlowEngine) Act(ctx context.Context, applicationID, actorID int64, action, notes string) (*workflow.ActResult, error) {
	if m.actFunc != nil {
		return m.actFunc(ctx, applicationID, actorID, action, notes)
	}
	return &workflow.ActResult{}, nil
}

func (m *mockFlowEngine) SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error) {
	return 0, nil
}

type mockDispatcher struct {
	mu         sync.Mutex
	events     []*event.Event
	subscribed map[event.Type]string
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribed == nil {
		m.subscribed = make(map[event.Type]string)
	}
	m.subscribed[eventType] = name
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error { return nil }

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {}

func (m *mockDispatcher) Publish(ctx context.Context, events ...*event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockMessageSender struct {
	sendMessageFunc func(ctx context.Context, openID string, content string) error
	sent            map[string]string
}

func (m *mockMessageSender) SendMessage(ctx context.Context, openID string, content string) error {
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, openID, content)
	}
	if m.sent == nil {
		m.sent = make(map[string]string)
	}
	m.sent[openID] = content
	return nil
}

type mockExporter struct {
	written []port.ChainSnapshot
	err     error
}

func (m *mockExporter) Write(data port.ChainSnapshot, w io.Writer) error {
	m.written = append(m.written, data)
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, "xlsx")
	return err
}
