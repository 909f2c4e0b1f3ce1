package workflow

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

// memStore backs the in-memory repositories used by the engine tests
type memStore struct {
	mu         sync.Mutex
	apps       map[int64]*entity.TravelApplication
	trips      map[int64][]*entity.TripSegment
	flows      []*entity.TravelApprovalFlow
	histories  []*entity.ApprovalHistory
	nextFlowID int64
	updateErr  error
	historyErr error
}

func newMemStore() *memStore {
	return &memStore{
		apps:  make(map[int64]*entity.TravelApplication),
		trips: make(map[int64][]*entity.TripSegment),
	}
}

// addApplication stores an application with one trip and the given number of bookings
func (s *memStore) addApplication(id, employeeID int64, status string, bookings int) *entity.TravelApplication {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := &entity.TravelApplication{ID: id, EmployeeID: employeeID, Status: status}
	s.apps[id] = app
	trip := &entity.TripSegment{ID: id * 10, ApplicationID: id}
	for i := 0; i < bookings; i++ {
		trip.Bookings = append(trip.Bookings, &entity.Booking{ID: id*100 + int64(i), TripID: trip.ID, ModeName: "Train"})
	}
	s.trips[id] = []*entity.TripSegment{trip}
	return app
}

func (s *memStore) app(id int64) entity.TravelApplication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.apps[id]
}

func (s *memStore) flowsFor(applicationID int64) []*entity.TravelApprovalFlow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.TravelApprovalFlow
	for _, f := range s.flows {
		if f.ApplicationID == applicationID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

type memAppRepo struct{ s *memStore }

func (r *memAppRepo) Create(ctx context.Context, app *entity.TravelApplication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.apps[app.ID] = app
	return nil
}

func (r *memAppRepo) GetByID(ctx context.Context, id int64) (*entity.TravelApplication, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	app, ok := r.s.apps[id]
	if !ok {
		return nil, nil
	}
	c := *app
	return &c, nil
}

func (r *memAppRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error) {
	return nil, nil
}

func (r *memAppRepo) UpdateStatus(ctx context.Context, id int64, status string, currentApproverID *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	app := r.s.apps[id]
	app.Status = status
	app.CurrentApproverID = currentApproverID
	return nil
}

func (r *memAppRepo) MarkSubmitted(ctx context.Context, id int64, submittedAt time.Time, selfApproved bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	app := r.s.apps[id]
	app.SubmittedAt = &submittedAt
	app.SelfApproved = selfApproved
	return nil
}

type memTripRepo struct{ s *memStore }

func (r *memTripRepo) Create(ctx context.Context, trip *entity.TripSegment) error { return nil }

func (r *memTripRepo) CreateBooking(ctx context.Context, booking *entity.Booking) error { return nil }

func (r *memTripRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TripSegment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.trips[applicationID], nil
}

type memFlowRepo struct{ s *memStore }

func (r *memFlowRepo) Create(ctx context.Context, flow *entity.TravelApprovalFlow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextFlowID++
	flow.ID = r.s.nextFlowID
	c := *flow
	r.s.flows = append(r.s.flows, &c)
	return nil
}

func (r *memFlowRepo) DeleteByApplication(ctx context.Context, applicationID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.flows[:0]
	for _, f := range r.s.flows {
		if f.ApplicationID != applicationID {
			kept = append(kept, f)
		}
	}
	r.s.flows = kept
	return nil
}

func (r *memFlowRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error) {
	return r.s.flowsFor(applicationID), nil
}

func (r *memFlowRepo) FirstPending(ctx context.Context, applicationID int64) (*entity.TravelApprovalFlow, error) {
	for _, f := range r.s.flowsFor(applicationID) {
		if f.Status == entity.FlowStatusPending {
			return f, nil
		}
	}
	return nil, nil
}

func (r *memFlowRepo) UpdateStatusIfPending(ctx context.Context, id int64, status, notes string, actedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.flows {
		if f.ID == id && f.Status == entity.FlowStatusPending {
			f.Status = status
			f.Notes = notes
			f.ApprovedAt = &actedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *memFlowRepo) CountPendingRequired(ctx context.Context, applicationID int64) (int, error) {
	n := 0
	for _, f := range r.s.flowsFor(applicationID) {
		if f.Status == entity.FlowStatusPending && f.IsRequired {
			n++
		}
	}
	return n, nil
}

func (r *memFlowRepo) SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, f := range r.s.flows {
		if f.ApplicationID == applicationID && f.Status == entity.FlowStatusPending {
			f.Status = entity.FlowStatusSkipped
			f.Notes = notes
			n++
		}
	}
	return n, nil
}

type memHistoryRepo struct{ s *memStore }

func (r *memHistoryRepo) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.historyErr != nil {
		return r.s.historyErr
	}
	r.s.histories = append(r.s.histories, history)
	return nil
}

func (r *memHistoryRepo) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.ApprovalHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ApprovalHistory
	for _, h := range r.s.histories {
		if h.ApplicationID == applicationID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockTxManager struct {
	commitErr error
	calls     atomic.Int32
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls.Add(1)
	if err := fn(ctx); err != nil {
		return err
	}
	return m.commitErr
}

type mockDispatcher struct {
	mu         sync.Mutex
	events     []*event.Event
	asyncCalls int
	publishes  int
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.record(evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	m.asyncCalls++
	m.mu.Unlock()
	m.record(evt)
}

func (m *mockDispatcher) Publish(ctx context.Context, events ...*event.Event) {
	m.mu.Lock()
	m.publishes++
	m.mu.Unlock()
	for _, evt := range events {
		if evt != nil {
			m.record(evt)
		}
	}
}

func (m *mockDispatcher) record(evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

type harness struct {
	store      *memStore
	tx         *mockTxManager
	dispatcher *mockDispatcher
	states     StateEngine
	flows      FlowEngine
	now        time.Time
}

func newHarness() *harness {
	h := &harness{
		store:      newMemStore(),
		tx:         &mockTxManager{},
		dispatcher: &mockDispatcher{},
		now:        time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
	}
	clock := WithClock(func() time.Time { return h.now })
	h.states = NewStateEngine(
		&memAppRepo{h.store}, &memTripRepo{h.store}, &memFlowRepo{h.store}, &memHistoryRepo{h.store},
		h.tx, WithDispatcher(h.dispatcher), clock,
	)
	h.flows = NewFlowEngine(&memAppRepo{h.store}, &memFlowRepo{h.store}, h.tx, h.states, clock)
	return h
}
