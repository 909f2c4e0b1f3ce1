package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Logger defines the logging interface used by the policy source
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
}

// selfApprovalBaseline lists the modes each grade may approve for itself
var selfApprovalBaseline = map[string][]string{
	"g4": {"train", "bus"},
	"g5": {"train", "bus", "local conveyance", "cab pickup", "cab drop"},
	"g6": {"flight", "train", "bus", "local conveyance", "cab pickup", "cab drop", "own car"},
}

// Source implements approval.PolicySource over the policy and matrix tables
type Source struct {
	policyRepo port.PolicyRepository
	matrixRepo port.MatrixRepository
	logger     Logger
	now        func() time.Time
}

var _ approval.PolicySource = (*Source)(nil)

// NewSource creates a new policy source
func NewSource(policyRepo port.PolicyRepository, matrixRepo port.MatrixRepository, logger Logger) *Source {
	return &Source{
		policyRepo: policyRepo,
		matrixRepo: matrixRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// SelfApprovalAllowed reports whether grade may self-approve travel by modeName
func (s *Source) SelfApprovalAllowed(grade, modeName string) bool {
	modes, ok := selfApprovalBaseline[strings.ToLower(strings.TrimSpace(grade))]
	if !ok {
		return false
	}
	mode := strings.ToLower(strings.TrimSpace(modeName))
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// EffectivePolicies returns the policies of policyType in effect now.
// Policies whose parameters cannot be parsed are logged and skipped.
func (s *Source) EffectivePolicies(ctx context.Context, policyType entity.PolicyType) ([]approval.Policy, error) {
	rows, err := s.policyRepo.ListActiveByType(ctx, policyType)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s policies: %w", policyType, err)
	}

	now := s.now()
	policies := make([]approval.Policy, 0, len(rows))
	for _, row := range rows {
		if !row.EffectiveAt(now) {
			continue
		}
		params, err := ParseParameters(row.PolicyType, row.RuleParameters)
		if err != nil {
			s.logger.Warn("Skipping policy with unusable parameters",
				"policy_id", row.ID, "policy_type", row.PolicyType, "error", err)
			continue
		}
		policies = append(policies, approval.Policy{
			ID:         row.ID,
			Name:       row.Name,
			TravelMode: row.TravelMode,
			Params:     params,
		})
	}
	return policies, nil
}

// MatrixRule returns the first active matrix row for mode and grade whose range contains amount
func (s *Source) MatrixRule(ctx context.Context, mode, grade string, amount decimal.Decimal) (*entity.ApprovalMatrixRule, error) {
	rules, err := s.matrixRepo.ListActive(ctx, strings.TrimSpace(mode), strings.TrimSpace(grade))
	if err != nil {
		return nil, fmt.Errorf("failed to list approval matrix: %w", err)
	}
	for _, rule := range rules {
		if rule.Contains(amount) {
			return rule, nil
		}
	}
	return nil, nil
}
