package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// PolicySource provides read-only access to the approval rule sources
type PolicySource interface {
	SelfApprovalAllowed(grade, modeName string) bool
	EffectivePolicies(ctx context.Context, policyType entity.PolicyType) ([]Policy, error)
	MatrixRule(ctx context.Context, mode, grade string, amount decimal.Decimal) (*entity.ApprovalMatrixRule, error)
}

// RoleDirectory resolves users by functional role or identity
type RoleDirectory interface {
	FindActiveUserForRole(ctx context.Context, roleName string) (*entity.User, error)
	FindUser(ctx context.Context, id int64) (*entity.User, error)
	HoldsRole(ctx context.Context, userID int64, roleName string) (bool, error)
}

// Logger defines the logging interface used by the resolver
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Config holds the static fallbacks used when no policy is configured
type Config struct {
	FlightAmountLimit  decimal.Decimal
	CarDistanceLimitKm decimal.Decimal
	DisposalMaxDays    int
	// StrictEscalation turns an unresolvable CHRO or CEO into ErrConfiguration
	StrictEscalation bool
}

// DefaultConfig returns the stock fallback thresholds
func DefaultConfig() Config {
	return Config{
		FlightAmountLimit:  decimal.NewFromInt(10000),
		CarDistanceLimitKm: decimal.NewFromInt(150),
		DisposalMaxDays:    3,
	}
}

// Result is the outcome of resolving an application's approval chain
type Result struct {
	SelfApproved        bool                   `json:"self_approved"`
	Chain               []entity.ApproverEntry `json:"chain"`
	PrimaryMode         string                 `json:"primary_mode"`
	Triggers            Triggers               `json:"triggers"`
	ManagerDecision     ManagerDecision        `json:"manager_decision"`
	AdvanceBookingNotes []string               `json:"advance_booking_notes,omitempty"`
}

// FirstApprover returns the first chain entry, if any
func (r *Result) FirstApprover() (entity.ApproverEntry, bool) {
	if r == nil || len(r.Chain) == 0 {
		return entity.ApproverEntry{}, false
	}
	return r.Chain[0], true
}

// escalation records whether an executive step is required and what required it
type escalation struct {
	required bool
	rule     string
}

// Resolver computes approval chains. It only reads its collaborators.
type Resolver struct {
	policies  PolicySource
	directory RoleDirectory
	cfg       Config
	logger    Logger
	now       func() time.Time
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the clock used for advance booking checks
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a new resolver
func NewResolver(policies PolicySource, directory RoleDirectory, cfg Config, logger Logger, opts ...Option) *Resolver {
	r := &Resolver{
		policies:  policies,
		directory: directory,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the approval chain for an application submitted by requester
func (r *Resolver) Resolve(ctx context.Context, app *entity.TravelApplication, requester *entity.User) (*Result, error) {
	if app == nil || requester == nil {
		return nil, fmt.Errorf("%w: application and requester are required", ErrValidation)
	}

	signals := Aggregate(app)
	primary, ok := Primary(signals)
	if !ok {
		return nil, fmt.Errorf("%w: application %d has no bookings", ErrValidation, app.ID)
	}

	triggers, err := r.evaluateOverrides(ctx, signals)
	if err != nil {
		return nil, err
	}

	notes, err := r.advanceBookingNotes(ctx, app)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PrimaryMode:         primary.ModeName,
		Triggers:            triggers,
		AdvanceBookingNotes: notes,
	}

	selfEligible := r.policies.SelfApprovalAllowed(requester.Grade, primary.ModeName)
	if selfEligible && !triggers.Any() {
		result.SelfApproved = true
		result.Chain = []entity.ApproverEntry{}
		result.ManagerDecision = OmitManager(OmitSelfApprovalEligible)
		r.logger.Info("Application is self-approvable",
			"application_id", app.ID, "grade", requester.Grade, "mode", primary.ModeName)
		return result, nil
	}

	amount := app.EstimatedTotalCost
	if amount.IsZero() {
		amount = TotalCost(signals)
	}
	rule, err := r.policies.MatrixRule(ctx, primary.ModeName, requester.Grade, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval matrix: %w", err)
	}

	ceo := ceoEscalation(rule, triggers)
	chro, chroByGround := chroEscalation(rule, triggers)
	result.ManagerDecision = decideManager(selfEligible, triggers, chroByGround)

	chain, err := r.assemble(ctx, requester, result.ManagerDecision, chro, ceo)
	if err != nil {
		return nil, err
	}

	if len(chain) == 0 {
		fallback, err := r.directory.FindActiveUserForRole(ctx, entity.RoleManager)
		if err != nil {
			return nil, fmt.Errorf("failed to look up fallback manager: %w", err)
		}
		if fallback == nil {
			return nil, fmt.Errorf("%w: no approver could be resolved for application %d", ErrConfiguration, app.ID)
		}
		chain = DedupeAndSequence([]entity.ApproverEntry{
			newEntry(fallback, entity.LevelManager, "manager_role_fallback"),
		})
	}

	result.Chain = chain
	r.logger.Info("Approval chain resolved",
		"application_id", app.ID, "approvers", len(chain), "manager_included", result.ManagerDecision.Include)
	return result, nil
}

func (r *Resolver) evaluateOverrides(ctx context.Context, signals []BookingSignal) (Triggers, error) {
	flight, err := r.evaluate(ctx, r.flightAmountRule(), signals)
	if err != nil {
		return Triggers{}, err
	}
	distance, err := r.evaluate(ctx, r.carDistanceRule(), signals)
	if err != nil {
		return Triggers{}, err
	}
	return Triggers{
		FlightAmount:     flight,
		CarDistance:      distance,
		DisposalDuration: r.evaluateDisposal(signals),
	}, nil
}

func ceoEscalation(rule *entity.ApprovalMatrixRule, triggers Triggers) escalation {
	if rule != nil && rule.RequiresCEO {
		return escalation{required: true, rule: fmt.Sprintf("matrix_%d", rule.ID)}
	}
	if triggers.FlightAmount.Fired {
		return escalation{required: true, rule: triggers.FlightAmount.Rule}
	}
	return escalation{}
}

// chroEscalation also reports whether a ground transport override is what required the CHRO
func chroEscalation(rule *entity.ApprovalMatrixRule, triggers Triggers) (escalation, bool) {
	switch {
	case rule != nil && rule.RequiresCHRO:
		return escalation{required: true, rule: fmt.Sprintf("matrix_%d", rule.ID)}, false
	case triggers.CarDistance.Fired:
		return escalation{required: true, rule: triggers.CarDistance.Rule}, true
	case triggers.DisposalDuration.Fired:
		return escalation{required: true, rule: triggers.DisposalDuration.Rule}, true
	}
	return escalation{}, false
}

// assemble builds the ordered chain: manager, CHRO, CEO
func (r *Resolver) assemble(ctx context.Context, requester *entity.User, decision ManagerDecision, chro, ceo escalation) ([]entity.ApproverEntry, error) {
	var entries []entity.ApproverEntry

	if decision.Include {
		manager, tag, err := r.resolveManager(ctx, requester)
		if err != nil {
			return nil, err
		}
		if manager != nil {
			entries = append(entries, newEntry(manager, entity.LevelManager, tag))
		}
	}

	var chroUser, ceoUser *entity.User
	var err error
	if chro.required {
		chroUser, err = r.resolveExecutive(ctx, entity.RoleCHRO, chro.rule)
		if err != nil {
			return nil, err
		}
		if chroUser != nil {
			entries = append(entries, newEntry(chroUser, entity.LevelCHRO, chro.rule))
		}
	}
	if ceo.required {
		ceoUser, err = r.resolveExecutive(ctx, entity.RoleCEO, ceo.rule)
		if err != nil {
			return nil, err
		}
		if ceoUser != nil {
			entries = append(entries, newEntry(ceoUser, entity.LevelCEO, ceo.rule))
		}
	}

	if requester.ReportsToSelf() {
		executive, err := r.holdsRequiredExecutiveRole(ctx, requester, chro.required, ceo.required)
		if err != nil {
			return nil, err
		}
		if executive {
			entries = withoutLevel(entries, entity.LevelManager)
		}
	}

	for i := range entries {
		entries[i].Sequence = i + 1
	}
	return DedupeAndSequence(entries), nil
}

// resolveManager prefers the reporting manager and falls back to the Manager role
func (r *Resolver) resolveManager(ctx context.Context, requester *entity.User) (*entity.User, string, error) {
	if requester.ReportingManagerID != nil {
		manager, err := r.directory.FindUser(ctx, *requester.ReportingManagerID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up reporting manager: %w", err)
		}
		if manager != nil && manager.IsActive {
			return manager, "reporting_hierarchy", nil
		}
	}

	manager, err := r.directory.FindActiveUserForRole(ctx, entity.RoleManager)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up manager role: %w", err)
	}
	if manager == nil {
		r.logger.Warn("No manager resolvable for requester", "requester_id", requester.ID)
		return nil, "", nil
	}
	return manager, "manager_role", nil
}

// holdsRequiredExecutiveRole reports whether requester holds any executive role
// the chain escalates to, regardless of which holder the role resolved to
func (r *Resolver) holdsRequiredExecutiveRole(ctx context.Context, requester *entity.User, chroRequired, ceoRequired bool) (bool, error) {
	check := func(role string) (bool, error) {
		held, err := r.directory.HoldsRole(ctx, requester.ID, role)
		if err != nil {
			return false, fmt.Errorf("failed to check %s role for requester: %w", role, err)
		}
		return held, nil
	}
	if ceoRequired {
		if held, err := check(entity.RoleCEO); err != nil || held {
			return held, err
		}
	}
	if chroRequired {
		return check(entity.RoleCHRO)
	}
	return false, nil
}

func (r *Resolver) resolveExecutive(ctx context.Context, role, rule string) (*entity.User, error) {
	user, err := r.directory.FindActiveUserForRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", role, err)
	}
	if user != nil {
		return user, nil
	}
	if r.cfg.StrictEscalation {
		return nil, fmt.Errorf("%w: no active %s user for required escalation %s", ErrConfiguration, role, rule)
	}
	r.logger.Warn("Required escalation skipped, no active user holds role",
		"role", role, "rule", rule)
	return nil, nil
}

func (r *Resolver) advanceBookingNotes(ctx context.Context, app *entity.TravelApplication) ([]string, error) {
	policies, err := r.policies.EffectivePolicies(ctx, entity.PolicyTypeAdvanceBooking)
	if err != nil {
		return nil, fmt.Errorf("failed to load advance booking policies: %w", err)
	}
	if len(policies) == 0 {
		return nil, nil
	}

	now := r.now()
	var notes []string
	for _, trip := range app.Trips {
		if trip == nil || trip.DepartureDate == nil {
			continue
		}
		daysAhead := CalendarDays(now.In(trip.DepartureDate.Location()), *trip.DepartureDate)
		for _, p := range policies {
			params, ok := p.Params.(AdvanceBooking)
			if !ok || params.MinDaysBefore <= 0 || daysAhead >= params.MinDaysBefore {
				continue
			}
			if !tripUsesMode(trip, p) {
				continue
			}
			notes = append(notes, fmt.Sprintf(
				"trip %d departs in %d days, policy %d requires booking %d days ahead",
				trip.ID, daysAhead, p.ID, params.MinDaysBefore))
		}
	}
	return notes, nil
}

func tripUsesMode(trip *entity.TripSegment, p Policy) bool {
	for _, b := range trip.Bookings {
		if b == nil {
			continue
		}
		mode := strings.TrimSpace(b.ModeName)
		if p.AppliesToMode(func(policyMode string) bool { return strings.EqualFold(policyMode, mode) }) {
			return true
		}
	}
	return false
}

func newEntry(user *entity.User, level entity.ApprovalLevel, rule string) entity.ApproverEntry {
	return entity.ApproverEntry{
		User:            user,
		Level:           level,
		IsRequired:      true,
		CanView:         true,
		CanApprove:      true,
		TriggeredByRule: rule,
	}
}

func withoutLevel(entries []entity.ApproverEntry, level entity.ApprovalLevel) []entity.ApproverEntry {
	kept := make([]entity.ApproverEntry, 0, len(entries))
	for _, e := range entries {
		if e.Level != level {
			kept = append(kept, e)
		}
	}
	return kept
}
