package approval

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// PolicyParameters is the typed form of a policy's rule parameters.
// Implementations are AmountLimit, DistanceLimit and AdvanceBooking.
type PolicyParameters interface {
	Kind() entity.PolicyType
}

// AmountLimit caps the cost of a booking before CEO approval is needed.
// A nil MaxAmount with RequiresCEO set means any flight amount escalates.
type AmountLimit struct {
	MaxAmount   *decimal.Decimal
	RequiresCEO bool
}

// Kind implements PolicyParameters
func (AmountLimit) Kind() entity.PolicyType { return entity.PolicyTypeAmountLimit }

// DistanceLimit caps the declared distance of a car booking before CHRO approval is needed.
// A nil MaxDistanceKm with RequiresCHRO set means any declared distance escalates.
type DistanceLimit struct {
	MaxDistanceKm *decimal.Decimal
	RequiresCHRO  bool
}

// Kind implements PolicyParameters
func (DistanceLimit) Kind() entity.PolicyType { return entity.PolicyTypeDistanceLimit }

// AdvanceBooking is the minimum number of days between submission and departure
type AdvanceBooking struct {
	MinDaysBefore int
}

// Kind implements PolicyParameters
func (AdvanceBooking) Kind() entity.PolicyType { return entity.PolicyTypeAdvanceBooking }

// Policy is an effective travel policy with normalized parameters
type Policy struct {
	ID         int64
	Name       string
	TravelMode string
	Params     PolicyParameters
}

// AppliesToMode reports whether the policy covers modes matched by pred.
// A policy without a travel mode covers all modes.
func (p Policy) AppliesToMode(pred func(mode string) bool) bool {
	mode := strings.TrimSpace(p.TravelMode)
	if mode == "" {
		return true
	}
	return pred(mode)
}
