package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Historical key spellings accepted for each parameter, in priority order
var (
	amountKeys       = []string{"max_amount", "amount_limit", "threshold", "limit"}
	requiresCEOKeys  = []string{"requires_ceo", "ceo_required", "ceo_approval_required"}
	distanceKeys     = []string{"max_distance_km", "distance_limit", "max_distance", "km_limit"}
	requiresCHROKeys = []string{"requires_chro", "chro_required"}
	minDaysKeys      = []string{"min_days_before", "advance_days", "min_days"}
)

// ParseParameters normalizes a policy's raw JSON parameters into their typed form
func ParseParameters(policyType entity.PolicyType, raw string) (approval.PolicyParameters, error) {
	values := map[string]interface{}{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, fmt.Errorf("invalid rule parameters: %w", err)
		}
	}

	switch policyType {
	case entity.PolicyTypeAmountLimit:
		amount, err := lookupDecimal(values, amountKeys)
		if err != nil {
			return nil, err
		}
		requiresCEO, err := lookupBool(values, requiresCEOKeys)
		if err != nil {
			return nil, err
		}
		return approval.AmountLimit{MaxAmount: amount, RequiresCEO: requiresCEO}, nil

	case entity.PolicyTypeDistanceLimit:
		distance, err := lookupDecimal(values, distanceKeys)
		if err != nil {
			return nil, err
		}
		requiresCHRO, err := lookupBool(values, requiresCHROKeys)
		if err != nil {
			return nil, err
		}
		return approval.DistanceLimit{MaxDistanceKm: distance, RequiresCHRO: requiresCHRO}, nil

	case entity.PolicyTypeAdvanceBooking:
		raw, ok := lookup(values, minDaysKeys)
		if !ok {
			return nil, fmt.Errorf("advance booking policy has no day count")
		}
		days, err := cast.ToIntE(normalizeNumber(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid day count %v: %w", raw, err)
		}
		return approval.AdvanceBooking{MinDaysBefore: days}, nil
	}

	return nil, fmt.Errorf("unknown policy type %q", policyType)
}

func lookup(values map[string]interface{}, keys []string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := values[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupDecimal(values map[string]interface{}, keys []string) (*decimal.Decimal, error) {
	raw, ok := lookup(values, keys)
	if !ok {
		return nil, nil
	}
	s := strings.TrimSpace(cast.ToString(raw))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %v: %w", raw, err)
	}
	return &d, nil
}

func lookupBool(values map[string]interface{}, keys []string) (bool, error) {
	raw, ok := lookup(values, keys)
	if !ok {
		return false, nil
	}
	b, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("invalid flag %v: %w", raw, err)
	}
	return b, nil
}

// normalizeNumber trims numeric strings so "7 " and "7" parse alike
func normalizeNumber(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}
