package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

// PolicyRepository implements port.PolicyRepository
type PolicyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new travel policy repository
func NewPolicyRepository(db *sql.DB, logger *zap.Logger) port.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a travel policy
func (r *PolicyRepository) Create(ctx context.Context, policy *entity.TravelPolicy) error {
	query := `
		INSERT INTO travel_policies (
			name, policy_type, travel_mode, rule_parameters,
			effective_from, effective_to, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	params := policy.RuleParameters
	if params == "" {
		params = "{}"
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		policy.Name,
		string(policy.PolicyType),
		policy.TravelMode,
		params,
		policy.EffectiveFrom,
		policy.EffectiveTo,
		policy.IsActive,
	)
	if err != nil {
		r.logger.Error("Failed to create policy", zap.String("name", policy.Name), zap.Error(err))
		return fmt.Errorf("failed to create policy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	policy.ID = id
	policy.RuleParameters = params
	return nil
}

// ListActiveByType returns active policies ordered by effective_from DESC, id ASC
func (r *PolicyRepository) ListActiveByType(ctx context.Context, policyType entity.PolicyType) ([]*entity.TravelPolicy, error) {
	query := `
		SELECT id, name, policy_type, travel_mode, rule_parameters,
			effective_from, effective_to, is_active, created_at
		FROM travel_policies
		WHERE policy_type = ? AND is_active = 1
		ORDER BY effective_from DESC, id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, string(policyType))
	if err != nil {
		r.logger.Error("Failed to list policies", zap.String("policy_type", string(policyType)), zap.Error(err))
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []*entity.TravelPolicy
	for rows.Next() {
		var p entity.TravelPolicy
		var pType string
		var effectiveTo sql.NullTime
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&pType,
			&p.TravelMode,
			&p.RuleParameters,
			&p.EffectiveFrom,
			&effectiveTo,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.PolicyType = entity.PolicyType(pType)
		if effectiveTo.Valid {
			p.EffectiveTo = &effectiveTo.Time
		}
		policies = append(policies, &p)
	}
	return policies, rows.Err()
}

var _ port.PolicyRepository = (*PolicyRepository)(nil)

// MatrixRepository implements port.MatrixRepository
type MatrixRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMatrixRepository creates a new approval matrix repository
func NewMatrixRepository(db *sql.DB, logger *zap.Logger) port.MatrixRepository {
	return &MatrixRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates an approval matrix rule
func (r *MatrixRepository) Create(ctx context.Context, rule *entity.ApprovalMatrixRule) error {
	query := `
		INSERT INTO approval_matrix (
			travel_mode, grade, min_amount, max_amount, requires_ceo, requires_chro, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var maxAmount interface{}
	if rule.MaxAmount != nil {
		maxAmount = rule.MaxAmount.String()
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		rule.TravelMode,
		rule.Grade,
		rule.MinAmount,
		maxAmount,
		rule.RequiresCEO,
		rule.RequiresCHRO,
		rule.IsActive,
	)
	if err != nil {
		r.logger.Error("Failed to create matrix rule",
			zap.String("travel_mode", rule.TravelMode),
			zap.String("grade", rule.Grade),
			zap.Error(err))
		return fmt.Errorf("failed to create matrix rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rule.ID = id
	return nil
}

// ListActive returns active rules for mode and grade, case-insensitively, in id order
func (r *MatrixRepository) ListActive(ctx context.Context, mode, grade string) ([]*entity.ApprovalMatrixRule, error) {
	query := `
		SELECT id, travel_mode, grade, min_amount, max_amount, requires_ceo, requires_chro, is_active
		FROM approval_matrix
		WHERE travel_mode = ? COLLATE NOCASE AND grade = ? COLLATE NOCASE AND is_active = 1
		ORDER BY id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, mode, grade)
	if err != nil {
		r.logger.Error("Failed to list matrix rules", zap.String("travel_mode", mode), zap.String("grade", grade), zap.Error(err))
		return nil, fmt.Errorf("failed to list matrix rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalMatrixRule
	for rows.Next() {
		var rule entity.ApprovalMatrixRule
		var maxAmount decimal.NullDecimal
		if err := rows.Scan(
			&rule.ID,
			&rule.TravelMode,
			&rule.Grade,
			&rule.MinAmount,
			&maxAmount,
			&rule.RequiresCEO,
			&rule.RequiresCHRO,
			&rule.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan matrix rule: %w", err)
		}
		if maxAmount.Valid {
			max := maxAmount.Decimal
			rule.MaxAmount = &max
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

var _ port.MatrixRepository = (*MatrixRepository)(nil)
