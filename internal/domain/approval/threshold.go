package approval

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Threshold is a resolved limit with the provenance tag that produced it
type Threshold struct {
	Limit    decimal.Decimal
	Tag      string
	PolicyID int64
}

// Trigger records that an override fired and why
type Trigger struct {
	Fired     bool
	Rule      string
	BookingID int64
}

// Triggers groups the escalation overrides evaluated for one resolution
type Triggers struct {
	FlightAmount     Trigger
	CarDistance      Trigger
	DisposalDuration Trigger
}

// Any reports whether at least one override fired
func (t Triggers) Any() bool {
	return t.FlightAmount.Fired || t.CarDistance.Fired || t.DisposalDuration.Fired
}

// GroundTransport reports whether a car distance or disposal override fired
func (t Triggers) GroundTransport() bool {
	return t.CarDistance.Fired || t.DisposalDuration.Fired
}

// ruleKind parameterizes the policy-then-fallback cascade for one override
type ruleKind struct {
	policyType entity.PolicyType
	modeMatch  func(mode string) bool
	measure    func(s BookingSignal) (decimal.Decimal, bool)
	fromPolicy func(p Policy) (decimal.Decimal, string, bool)
	fallback   func() Threshold
}

func (r *Resolver) flightAmountRule() ruleKind {
	return ruleKind{
		policyType: entity.PolicyTypeAmountLimit,
		modeMatch:  IsFlight,
		measure: func(s BookingSignal) (decimal.Decimal, bool) {
			return s.EstimatedCost, true
		},
		fromPolicy: func(p Policy) (decimal.Decimal, string, bool) {
			params, ok := p.Params.(AmountLimit)
			if !ok {
				return decimal.Zero, "", false
			}
			tag := fmt.Sprintf("policy_%d", p.ID)
			if params.MaxAmount != nil {
				return *params.MaxAmount, tag, true
			}
			if params.RequiresCEO {
				return decimal.Zero, tag, true
			}
			return decimal.Zero, "", false
		},
		fallback: func() Threshold {
			return Threshold{
				Limit: r.cfg.FlightAmountLimit,
				Tag:   "flight_above_" + r.cfg.FlightAmountLimit.String(),
			}
		},
	}
}

func (r *Resolver) carDistanceRule() ruleKind {
	return ruleKind{
		policyType: entity.PolicyTypeDistanceLimit,
		modeMatch:  IsCarRelated,
		measure: func(s BookingSignal) (decimal.Decimal, bool) {
			if s.DistanceKm == nil {
				return decimal.Zero, false
			}
			return *s.DistanceKm, true
		},
		fromPolicy: func(p Policy) (decimal.Decimal, string, bool) {
			params, ok := p.Params.(DistanceLimit)
			if !ok {
				return decimal.Zero, "", false
			}
			tag := fmt.Sprintf("distance_policy_%d", p.ID)
			if params.MaxDistanceKm != nil {
				return *params.MaxDistanceKm, tag, true
			}
			if params.RequiresCHRO {
				return decimal.Zero, tag, true
			}
			return decimal.Zero, "", false
		},
		fallback: func() Threshold {
			return Threshold{
				Limit: r.cfg.CarDistanceLimitKm,
				Tag:   "car_distance_above_" + r.cfg.CarDistanceLimitKm.String() + "km",
			}
		},
	}
}

// resolveThreshold walks the cascade for a rule kind: the first effective
// policy covering the kind's modes wins, else the static fallback applies.
func (r *Resolver) resolveThreshold(ctx context.Context, kind ruleKind) (Threshold, error) {
	policies, err := r.policies.EffectivePolicies(ctx, kind.policyType)
	if err != nil {
		return Threshold{}, fmt.Errorf("failed to load %s policies: %w", kind.policyType, err)
	}
	for _, p := range policies {
		if !p.AppliesToMode(kind.modeMatch) {
			continue
		}
		if limit, tag, ok := kind.fromPolicy(p); ok {
			return Threshold{Limit: limit, Tag: tag, PolicyID: p.ID}, nil
		}
	}
	return kind.fallback(), nil
}

// evaluate fires when any booking matched by the kind measures above the threshold
func (r *Resolver) evaluate(ctx context.Context, kind ruleKind, signals []BookingSignal) (Trigger, error) {
	var candidates []BookingSignal
	for _, s := range signals {
		if kind.modeMatch(s.ModeName) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return Trigger{}, nil
	}

	threshold, err := r.resolveThreshold(ctx, kind)
	if err != nil {
		return Trigger{}, err
	}
	for _, s := range candidates {
		value, ok := kind.measure(s)
		if ok && value.GreaterThan(threshold.Limit) {
			return Trigger{Fired: true, Rule: threshold.Tag, BookingID: s.BookingID}, nil
		}
	}
	return Trigger{}, nil
}

// evaluateDisposal fires when a booking at disposal spans more days than allowed
func (r *Resolver) evaluateDisposal(signals []BookingSignal) Trigger {
	for _, s := range signals {
		if !s.IsDisposal || s.TripDurationDays == nil {
			continue
		}
		if *s.TripDurationDays > r.cfg.DisposalMaxDays {
			return Trigger{
				Fired:     true,
				Rule:      fmt.Sprintf("disposal_above_%d_days", r.cfg.DisposalMaxDays),
				BookingID: s.BookingID,
			}
		}
	}
	return Trigger{}
}
