package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PolicyType identifies the kind of a travel policy
type PolicyType string

const (
	PolicyTypeAmountLimit    PolicyType = "amount_limit"
	PolicyTypeDistanceLimit  PolicyType = "distance_limit"
	PolicyTypeAdvanceBooking PolicyType = "advance_booking"
)

// IsValid checks if the policy type is known
func (t PolicyType) IsValid() bool {
	switch t {
	case PolicyTypeAmountLimit, PolicyTypeDistanceLimit, PolicyTypeAdvanceBooking:
		return true
	}
	return false
}

// TravelPolicy is a configured policy row. RuleParameters holds the raw JSON
// object as stored; it is normalized into typed parameters by the policy source.
type TravelPolicy struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	PolicyType     PolicyType `json:"policy_type"`
	TravelMode     string     `json:"travel_mode,omitempty"`
	RuleParameters string     `json:"rule_parameters"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EffectiveAt reports whether the policy window contains t
func (p *TravelPolicy) EffectiveAt(t time.Time) bool {
	if !p.IsActive || t.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || !t.After(*p.EffectiveTo)
}

// ApprovalMatrixRule maps travel mode x grade x amount range to escalation flags
type ApprovalMatrixRule struct {
	ID           int64            `json:"id"`
	TravelMode   string           `json:"travel_mode"`
	Grade        string           `json:"grade"`
	MinAmount    decimal.Decimal  `json:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty"`
	RequiresCEO  bool             `json:"requires_ceo"`
	RequiresCHRO bool             `json:"requires_chro"`
	IsActive     bool             `json:"is_active"`
}

// Contains reports whether amount falls inside the rule's [min, max] range.
// A nil MaxAmount is unbounded.
func (r *ApprovalMatrixRule) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	return r.MaxAmount == nil || amount.LessThanOrEqual(*r.MaxAmount)
}
