package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

func TestParseParameters_AmountLimit(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantAmount  string
		requiresCEO bool
	}{
		{"canonical", `{"max_amount": 10000}`, "10000", false},
		{"legacy amount_limit", `{"amount_limit": "8500.50"}`, "8500.5", false},
		{"legacy threshold", `{"threshold": 7000, "ceo_required": "true"}`, "7000", true},
		{"legacy limit", `{"limit": 5000, "ceo_approval_required": 1}`, "5000", true},
		{"first spelling wins", `{"max_amount": 100, "limit": 200}`, "100", false},
		{"flag only", `{"requires_ceo": true}`, "", true},
		{"empty", ``, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseParameters(entity.PolicyTypeAmountLimit, tt.raw)
			require.NoError(t, err)

			limit, ok := params.(approval.AmountLimit)
			require.True(t, ok)
			assert.Equal(t, tt.requiresCEO, limit.RequiresCEO)
			if tt.wantAmount == "" {
				assert.Nil(t, limit.MaxAmount)
				return
			}
			require.NotNil(t, limit.MaxAmount)
			assert.True(t, limit.MaxAmount.Equal(decimal.RequireFromString(tt.wantAmount)),
				"got %s", limit.MaxAmount)
		})
	}
}

func TestParseParameters_DistanceLimit(t *testing.T) {
	for _, raw := range []string{
		`{"max_distance_km": 150}`,
		`{"distance_limit": "150"}`,
		`{"max_distance": 150.0}`,
		`{"km_limit": " 150 "}`,
	} {
		params, err := ParseParameters(entity.PolicyTypeDistanceLimit, raw)
		require.NoError(t, err, raw)

		limit, ok := params.(approval.DistanceLimit)
		require.True(t, ok)
		require.NotNil(t, limit.MaxDistanceKm, raw)
		assert.True(t, limit.MaxDistanceKm.Equal(decimal.NewFromInt(150)), raw)
	}
}

func TestParseParameters_AdvanceBooking(t *testing.T) {
	for _, raw := range []string{`{"min_days_before": 7}`, `{"advance_days": "7"}`, `{"min_days": 7}`} {
		params, err := ParseParameters(entity.PolicyTypeAdvanceBooking, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, approval.AdvanceBooking{MinDaysBefore: 7}, params)
	}

	_, err := ParseParameters(entity.PolicyTypeAdvanceBooking, `{"something_else": 7}`)
	assert.Error(t, err)
}

func TestParseParameters_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		policyType entity.PolicyType
		raw        string
	}{
		{"malformed json", entity.PolicyTypeAmountLimit, `{"max_amount":`},
		{"non numeric amount", entity.PolicyTypeAmountLimit, `{"max_amount": "lots"}`},
		{"non boolean flag", entity.PolicyTypeAmountLimit, `{"requires_ceo": "maybe"}`},
		{"unknown type", entity.PolicyType("per_diem"), `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParameters(tt.policyType, tt.raw)
			assert.Error(t, err)
		})
	}
}
