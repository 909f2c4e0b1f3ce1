package approval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

type mockPolicySource struct {
	selfApproval map[string]bool
	policies     map[entity.PolicyType][]Policy
	matrix       *entity.ApprovalMatrixRule
	err          error

	matrixAmount decimal.Decimal
}

func (m *mockPolicySource) SelfApprovalAllowed(grade, modeName string) bool {
	return m.selfApproval[strings.ToLower(grade+"|"+modeName)]
}

func (m *mockPolicySource) EffectivePolicies(ctx context.Context, policyType entity.PolicyType) ([]Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.policies[policyType], nil
}

func (m *mockPolicySource) MatrixRule(ctx context.Context, mode, grade string, amount decimal.Decimal) (*entity.ApprovalMatrixRule, error) {
	m.matrixAmount = amount
	return m.matrix, nil
}

type mockDirectory struct {
	users map[int64]*entity.User
	roles map[string]*entity.User
	// extra holders beyond the user each role resolves to
	holders map[string][]int64
	err     error
}

func (m *mockDirectory) FindActiveUserForRole(ctx context.Context, roleName string) (*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.roles[strings.ToLower(roleName)], nil
}

func (m *mockDirectory) FindUser(ctx context.Context, id int64) (*entity.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

func (m *mockDirectory) HoldsRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := strings.ToLower(roleName)
	if u := m.roles[key]; u != nil && u.ID == userID {
		return true, nil
	}
	for _, id := range m.holders[key] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type mockLogger struct {
	warnings []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.warnings = append(m.warnings, msg)
}

func int64Ptr(v int64) *int64 { return &v }

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

type fixture struct {
	requester *entity.User
	manager   *entity.User
	chro      *entity.User
	ceo       *entity.User
	policies  *mockPolicySource
	directory *mockDirectory
	logger    *mockLogger
}

func newFixture() *fixture {
	f := &fixture{
		requester: &entity.User{ID: 1, Name: "Requester", Grade: "G3", ReportingManagerID: int64Ptr(2), IsActive: true},
		manager:   &entity.User{ID: 2, Name: "Manager", Grade: "G5", IsActive: true},
		chro:      &entity.User{ID: 3, Name: "CHRO", Grade: "G7", IsActive: true},
		ceo:       &entity.User{ID: 4, Name: "CEO", Grade: "G8", IsActive: true},
		logger:    &mockLogger{},
	}
	f.policies = &mockPolicySource{
		selfApproval: map[string]bool{
			"g4|train":  true,
			"g6|flight": true,
			"g6|train":  true,
		},
		policies: map[entity.PolicyType][]Policy{},
	}
	f.directory = &mockDirectory{
		users: map[int64]*entity.User{1: f.requester, 2: f.manager, 3: f.chro, 4: f.ceo},
		roles: map[string]*entity.User{
			"manager": f.manager,
			"chro":    f.chro,
			"ceo":     f.ceo,
		},
	}
	return f
}

func (f *fixture) resolver(cfg Config, opts ...Option) *Resolver {
	return NewResolver(f.policies, f.directory, cfg, f.logger, opts...)
}

func singleBooking(mode string, cost int64, details map[string]interface{}) *entity.TravelApplication {
	return &entity.TravelApplication{
		ID: 42,
		Trips: []*entity.TripSegment{{
			ID: 1,
			Bookings: []*entity.Booking{{
				ID: 7, ModeName: mode, EstimatedCost: decimal.NewFromInt(cost), BookingDetails: details,
			}},
		}},
	}
}

func levels(chain []entity.ApproverEntry) []entity.ApprovalLevel {
	out := make([]entity.ApprovalLevel, 0, len(chain))
	for _, e := range chain {
		out = append(out, e.Level)
	}
	return out
}

func assertChainProperties(t *testing.T, chain []entity.ApproverEntry) {
	t.Helper()
	seen := make(map[int64]bool)
	chroSeq, ceoSeq := 0, 0
	for i, e := range chain {
		require.NotNil(t, e.User)
		assert.False(t, seen[e.User.ID], "duplicate approver %d", e.User.ID)
		seen[e.User.ID] = true
		assert.Equal(t, i+1, e.Sequence)
		switch e.Level {
		case entity.LevelCHRO:
			chroSeq = e.Sequence
		case entity.LevelCEO:
			ceoSeq = e.Sequence
		}
	}
	if chroSeq > 0 && ceoSeq > 0 {
		assert.LessOrEqual(t, chroSeq, ceoSeq)
	}
}

func TestResolve_SelfApprovedTrain(t *testing.T) {
	f := newFixture()
	f.requester.Grade = "G4"

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Train", 1200, nil), f.requester)
	require.NoError(t, err)

	assert.True(t, result.SelfApproved)
	assert.Empty(t, result.Chain)
	assert.Equal(t, "Train", result.PrimaryMode)
	assert.False(t, result.Triggers.Any())
}

func TestResolve_ExpensiveFlightGoesToCEO(t *testing.T) {
	f := newFixture()
	f.requester.Grade = "G6"

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 12000, nil), f.requester)
	require.NoError(t, err)

	assert.False(t, result.SelfApproved)
	require.Len(t, result.Chain, 1)
	assert.Equal(t, entity.LevelCEO, result.Chain[0].Level)
	assert.Equal(t, f.ceo, result.Chain[0].User)
	assert.Equal(t, "flight_above_10000", result.Chain[0].TriggeredByRule)
	assert.Equal(t, OmitManager(OmitSelfApprovalEligible), result.ManagerDecision)
	assert.True(t, result.Triggers.FlightAmount.Fired)
	assert.Equal(t, int64(7), result.Triggers.FlightAmount.BookingID)
}

func TestResolve_LongCarTripGoesToCHRO(t *testing.T) {
	f := newFixture()
	f.policies.policies[entity.PolicyTypeDistanceLimit] = []Policy{
		{ID: 9, TravelMode: "Own Car", Params: DistanceLimit{MaxDistanceKm: decimalPtr(150)}},
	}

	app := singleBooking("Own Car", 2000, map[string]interface{}{"distance_km": 180})
	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, entity.LevelCHRO, result.Chain[0].Level)
	assert.Equal(t, "distance_policy_9", result.Chain[0].TriggeredByRule)
	assert.Equal(t, OmitManager(OmitGroundTransportEscalation), result.ManagerDecision)
}

func TestResolve_CarDistanceFallback(t *testing.T) {
	f := newFixture()

	app := singleBooking("Cab Drop", 500, map[string]interface{}{"distance_km": "151"})
	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, "car_distance_above_150km", result.Chain[0].TriggeredByRule)
}

func TestResolve_NoManagerResolvable(t *testing.T) {
	f := newFixture()
	f.requester.ReportingManagerID = nil
	delete(f.directory.roles, "manager")

	_, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Train", 500, nil), f.requester)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestResolve_ManagerFromRoleWhenNoReportingManager(t *testing.T) {
	f := newFixture()
	f.requester.ReportingManagerID = nil

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Train", 500, nil), f.requester)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, entity.LevelManager, result.Chain[0].Level)
	assert.Equal(t, "manager_role", result.Chain[0].TriggeredByRule)
}

func TestResolve_InactiveReportingManagerFallsBackToRole(t *testing.T) {
	f := newFixture()
	roleManager := &entity.User{ID: 5, Name: "Role Manager", IsActive: true}
	f.directory.roles["manager"] = roleManager
	f.manager.IsActive = false

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Train", 500, nil), f.requester)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, roleManager, result.Chain[0].User)
}

func TestResolve_MatrixRequiresBothExecutives(t *testing.T) {
	f := newFixture()
	f.policies.matrix = &entity.ApprovalMatrixRule{ID: 3, RequiresCEO: true, RequiresCHRO: true, IsActive: true}

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 5000, nil), f.requester)
	require.NoError(t, err)

	assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager, entity.LevelCHRO, entity.LevelCEO}, levels(result.Chain))
	assert.Equal(t, "reporting_hierarchy", result.Chain[0].TriggeredByRule)
	assert.Equal(t, "matrix_3", result.Chain[1].TriggeredByRule)
	assert.Equal(t, "matrix_3", result.Chain[2].TriggeredByRule)
	assert.Equal(t, IncludeManager(), result.ManagerDecision)
	assertChainProperties(t, result.Chain)
}

func TestResolve_MatrixAmountFallsBackToBookingTotal(t *testing.T) {
	f := newFixture()
	app := singleBooking("Train", 750, nil)

	_, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	assert.True(t, f.policies.matrixAmount.Equal(decimal.NewFromInt(750)))

	app.EstimatedTotalCost = decimal.NewFromInt(2000)
	_, err = f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	assert.True(t, f.policies.matrixAmount.Equal(decimal.NewFromInt(2000)))
}

func TestResolve_ManagerAlsoHoldsCHRO(t *testing.T) {
	f := newFixture()
	f.directory.roles["chro"] = f.manager
	f.policies.matrix = &entity.ApprovalMatrixRule{ID: 1, RequiresCHRO: true, RequiresCEO: true}

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 5000, nil), f.requester)
	require.NoError(t, err)

	assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager, entity.LevelCEO}, levels(result.Chain))
	assertChainProperties(t, result.Chain)
}

func TestResolve_SelfReportingCEO(t *testing.T) {
	f := newFixture()
	f.ceo.ReportingManagerID = int64Ptr(f.ceo.ID)
	f.ceo.Grade = "G8"

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 20000, nil), f.ceo)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, entity.LevelCEO, result.Chain[0].Level)
	assert.Equal(t, f.ceo.ID, result.Chain[0].User.ID)
}

func TestResolve_SelfReportingSecondCEOHolder(t *testing.T) {
	f := newFixture()
	cofounder := &entity.User{ID: 9, Name: "Co-founder", Grade: "G3", IsActive: true, ReportingManagerID: int64Ptr(9)}
	f.directory.users[cofounder.ID] = cofounder
	f.directory.holders = map[string][]int64{"ceo": {cofounder.ID}}

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 20000, nil), cofounder)
	require.NoError(t, err)

	assert.Equal(t, []entity.ApprovalLevel{entity.LevelCEO}, levels(result.Chain))
	assert.Equal(t, f.ceo.ID, result.Chain[0].User.ID)
	assertChainProperties(t, result.Chain)
}

func TestResolve_SelfReportingWithoutExecutiveRoleKeepsManager(t *testing.T) {
	f := newFixture()
	loner := &entity.User{ID: 9, Name: "Loner", Grade: "G3", IsActive: true, ReportingManagerID: int64Ptr(9)}
	f.directory.users[loner.ID] = loner

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 20000, nil), loner)
	require.NoError(t, err)

	assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager, entity.LevelCEO}, levels(result.Chain))
	assert.Equal(t, loner.ID, result.Chain[0].User.ID)
}

func TestResolve_AmountPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		cost     int64
		wantCEO  bool
		wantRule string
	}{
		{
			name:     "policy limit exceeded",
			policy:   Policy{ID: 5, TravelMode: "Flight", Params: AmountLimit{MaxAmount: decimalPtr(8000)}},
			cost:     9000,
			wantCEO:  true,
			wantRule: "policy_5",
		},
		{
			name:    "policy limit not exceeded beats fallback",
			policy:  Policy{ID: 5, Params: AmountLimit{MaxAmount: decimalPtr(15000)}},
			cost:    12000,
			wantCEO: false,
		},
		{
			name:     "requires ceo without amount",
			policy:   Policy{ID: 6, TravelMode: "flight", Params: AmountLimit{RequiresCEO: true}},
			cost:     100,
			wantCEO:  true,
			wantRule: "policy_6",
		},
		{
			name:     "policy for another mode is ignored",
			policy:   Policy{ID: 7, TravelMode: "Train", Params: AmountLimit{MaxAmount: decimalPtr(10)}},
			cost:     10001,
			wantCEO:  true,
			wantRule: "flight_above_10000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.policies.policies[entity.PolicyTypeAmountLimit] = []Policy{tt.policy}

			result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", tt.cost, nil), f.requester)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCEO, result.Triggers.FlightAmount.Fired)
			if tt.wantCEO {
				last := result.Chain[len(result.Chain)-1]
				assert.Equal(t, entity.LevelCEO, last.Level)
				assert.Equal(t, tt.wantRule, last.TriggeredByRule)
			} else {
				assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager}, levels(result.Chain))
			}
		})
	}
}

func TestResolve_DisposalDuration(t *testing.T) {
	f := newFixture()
	app := &entity.TravelApplication{
		ID: 1,
		Trips: []*entity.TripSegment{{
			ID:            1,
			DepartureDate: date(2026, 5, 1),
			ReturnDate:    date(2026, 5, 6),
			Bookings: []*entity.Booking{{
				ID: 3, ModeName: "Cab Pickup", EstimatedCost: decimal.NewFromInt(400),
				BookingDetails: map[string]interface{}{"is_disposal": "true"},
			}},
		}},
	}

	result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)

	require.Len(t, result.Chain, 1)
	assert.Equal(t, entity.LevelCHRO, result.Chain[0].Level)
	assert.Equal(t, "disposal_above_3_days", result.Chain[0].TriggeredByRule)

	app.Trips[0].ReturnDate = nil
	result, err = f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	assert.False(t, result.Triggers.DisposalDuration.Fired)
	assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager}, levels(result.Chain))
}

func TestResolve_DisposalDurationBoundary(t *testing.T) {
	tests := []struct {
		name      string
		departure time.Time
		ret       time.Time
		wantFired bool
		want      []entity.ApprovalLevel
	}{
		{
			name:      "three days stays with manager",
			departure: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			ret:       time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
			want:      []entity.ApprovalLevel{entity.LevelManager},
		},
		{
			name:      "three days with late return stays with manager",
			departure: time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC),
			ret:       time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC),
			want:      []entity.ApprovalLevel{entity.LevelManager},
		},
		{
			name:      "four days escalates",
			departure: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			ret:       time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC),
			wantFired: true,
			want:      []entity.ApprovalLevel{entity.LevelCHRO},
		},
		{
			name:      "four days with evening departure escalates",
			departure: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
			ret:       time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC),
			wantFired: true,
			want:      []entity.ApprovalLevel{entity.LevelCHRO},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			departure, ret := tt.departure, tt.ret
			app := &entity.TravelApplication{
				ID: 1,
				Trips: []*entity.TripSegment{{
					ID:            1,
					DepartureDate: &departure,
					ReturnDate:    &ret,
					Bookings: []*entity.Booking{{
						ID: 3, ModeName: "Cab Pickup", EstimatedCost: decimal.NewFromInt(400),
						BookingDetails: map[string]interface{}{"is_disposal": true},
					}},
				}},
			}

			result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
			require.NoError(t, err)

			assert.Equal(t, tt.wantFired, result.Triggers.DisposalDuration.Fired)
			assert.Equal(t, tt.want, levels(result.Chain))
		})
	}
}

func TestResolve_MissingCHRO(t *testing.T) {
	app := singleBooking("Own Car", 2000, map[string]interface{}{"distance_km": 400})

	t.Run("lenient falls back to manager role", func(t *testing.T) {
		f := newFixture()
		delete(f.directory.roles, "chro")

		result, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
		require.NoError(t, err)

		require.Len(t, result.Chain, 1)
		assert.Equal(t, "manager_role_fallback", result.Chain[0].TriggeredByRule)
		assert.NotEmpty(t, f.logger.warnings)
	})

	t.Run("strict fails", func(t *testing.T) {
		f := newFixture()
		delete(f.directory.roles, "chro")
		cfg := DefaultConfig()
		cfg.StrictEscalation = true

		_, err := f.resolver(cfg).Resolve(context.Background(), app, f.requester)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfiguration))
	})
}

func TestResolve_NoBookings(t *testing.T) {
	f := newFixture()
	app := &entity.TravelApplication{ID: 1, Trips: []*entity.TripSegment{{ID: 1}}}

	_, err := f.resolver(DefaultConfig()).Resolve(context.Background(), app, f.requester)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestResolve_PolicySourceFailure(t *testing.T) {
	f := newFixture()
	f.policies.err = errors.New("database is locked")

	_, err := f.resolver(DefaultConfig()).Resolve(context.Background(), singleBooking("Flight", 100, nil), f.requester)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestResolve_AdvanceBookingNotes(t *testing.T) {
	f := newFixture()
	f.requester.Grade = "G4"
	f.policies.policies[entity.PolicyTypeAdvanceBooking] = []Policy{
		{ID: 11, TravelMode: "Train", Params: AdvanceBooking{MinDaysBefore: 7}},
		{ID: 12, TravelMode: "Flight", Params: AdvanceBooking{MinDaysBefore: 30}},
	}
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	app := singleBooking("Train", 300, nil)
	app.Trips[0].DepartureDate = date(2026, 4, 4)

	result, err := f.resolver(DefaultConfig(), WithClock(func() time.Time { return now })).
		Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)

	assert.True(t, result.SelfApproved, "advance booking notes are advisory")
	require.Len(t, result.AdvanceBookingNotes, 1)
	assert.Contains(t, result.AdvanceBookingNotes[0], "policy 11")
}

func TestResolve_AdvanceBookingCountsCalendarDays(t *testing.T) {
	f := newFixture()
	f.requester.Grade = "G4"
	f.policies.policies[entity.PolicyTypeAdvanceBooking] = []Policy{
		{ID: 11, TravelMode: "Train", Params: AdvanceBooking{MinDaysBefore: 7}},
	}
	// 159 hours ahead but seven dates away
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	app := singleBooking("Train", 300, nil)
	app.Trips[0].DepartureDate = date(2026, 4, 8)

	result, err := f.resolver(DefaultConfig(), WithClock(func() time.Time { return now })).
		Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	assert.Empty(t, result.AdvanceBookingNotes)

	app.Trips[0].DepartureDate = date(2026, 4, 7)
	result, err = f.resolver(DefaultConfig(), WithClock(func() time.Time { return now })).
		Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	require.Len(t, result.AdvanceBookingNotes, 1)
	assert.Contains(t, result.AdvanceBookingNotes[0], "departs in 6 days")
}

func TestResolve_Deterministic(t *testing.T) {
	f := newFixture()
	f.policies.matrix = &entity.ApprovalMatrixRule{ID: 2, RequiresCHRO: true}
	app := &entity.TravelApplication{
		ID: 1,
		Trips: []*entity.TripSegment{{
			ID: 1,
			Bookings: []*entity.Booking{
				{ID: 1, ModeName: "Flight", EstimatedCost: decimal.NewFromInt(15000)},
				{ID: 2, ModeName: "Own Car", EstimatedCost: decimal.NewFromInt(600),
					BookingDetails: map[string]interface{}{"distance_km": 500}},
			},
		}},
	}

	r := f.resolver(DefaultConfig())
	first, err := r.Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), app, f.requester)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []entity.ApprovalLevel{entity.LevelManager, entity.LevelCHRO, entity.LevelCEO}, levels(first.Chain))
	assertChainProperties(t, first.Chain)
}
