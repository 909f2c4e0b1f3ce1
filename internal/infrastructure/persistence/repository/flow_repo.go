package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

// FlowRepository implements port.FlowRepository
type FlowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFlowRepository creates a new approval flow repository
func NewFlowRepository(db *sql.DB, logger *zap.Logger) port.FlowRepository {
	return &FlowRepository{
		db:     db,
		logger: logger,
	}
}

const flowColumns = `id, application_id, approver_id, approval_level, sequence, status,
	can_view, can_approve, is_required, triggered_by_rule, approved_at, notes,
	created_at, updated_at`

// Create inserts an approval flow row
func (r *FlowRepository) Create(ctx context.Context, flow *entity.TravelApprovalFlow) error {
	query := `
		INSERT INTO travel_approval_flows (
			application_id, approver_id, approval_level, sequence, status,
			can_view, can_approve, is_required, triggered_by_rule, approved_at, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := flow.Status
	if status == "" {
		status = entity.FlowStatusPending
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		flow.ApplicationID,
		flow.ApproverID,
		flow.ApprovalLevel.String(),
		flow.Sequence,
		status,
		flow.CanView,
		flow.CanApprove,
		flow.IsRequired,
		flow.TriggeredByRule,
		flow.ApprovedAt,
		flow.Notes,
	)
	if err != nil {
		r.logger.Error("Failed to create approval flow",
			zap.Int64("application_id", flow.ApplicationID),
			zap.Int("sequence", flow.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to create approval flow: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	flow.ID = id
	flow.Status = status
	return nil
}

// DeleteByApplication removes every flow of an application
func (r *FlowRepository) DeleteByApplication(ctx context.Context, applicationID int64) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM travel_approval_flows WHERE application_id = ?`, applicationID)
	if err != nil {
		r.logger.Error("Failed to delete approval flows", zap.Int64("application_id", applicationID), zap.Error(err))
		return fmt.Errorf("failed to delete approval flows: %w", err)
	}
	return nil
}

// ListByApplication returns flows in sequence order
func (r *FlowRepository) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error) {
	query := `SELECT ` + flowColumns + `
		FROM travel_approval_flows
		WHERE application_id = ?
		ORDER BY sequence ASC, id ASC`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to list approval flows", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval flows: %w", err)
	}
	defer rows.Close()

	flows := []*entity.TravelApprovalFlow{}
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval flow: %w", err)
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// FirstPending returns the pending flow with the lowest sequence
func (r *FlowRepository) FirstPending(ctx context.Context, applicationID int64) (*entity.TravelApprovalFlow, error) {
	query := `SELECT ` + flowColumns + `
		FROM travel_approval_flows
		WHERE application_id = ? AND status = ?
		ORDER BY sequence ASC, id ASC
		LIMIT 1`

	flow, err := scanFlow(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, applicationID, entity.FlowStatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending flow", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending flow: %w", err)
	}
	return flow, nil
}

// UpdateStatusIfPending changes a flow only while it is still pending
func (r *FlowRepository) UpdateStatusIfPending(ctx context.Context, id int64, status, notes string, actedAt time.Time) (bool, error) {
	query := `
		UPDATE travel_approval_flows
		SET status = ?, notes = ?, approved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		status, notes, actedAt, actedAt, id, entity.FlowStatusPending)
	if err != nil {
		r.logger.Error("Failed to update approval flow", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to update approval flow: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// CountPendingRequired counts required flows that still await action
func (r *FlowRepository) CountPendingRequired(ctx context.Context, applicationID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM travel_approval_flows
		WHERE application_id = ? AND status = ? AND is_required = 1
	`

	var count int
	if err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, applicationID, entity.FlowStatusPending).Scan(&count); err != nil {
		r.logger.Error("Failed to count pending flows", zap.Int64("application_id", applicationID), zap.Error(err))
		return 0, fmt.Errorf("failed to count pending flows: %w", err)
	}
	return count, nil
}

// SkipPending marks every remaining pending flow as skipped
func (r *FlowRepository) SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error) {
	query := `
		UPDATE travel_approval_flows
		SET status = ?, notes = ?, updated_at = ?
		WHERE application_id = ? AND status = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entity.FlowStatusSkipped, notes, time.Now().UTC(), applicationID, entity.FlowStatusPending)
	if err != nil {
		r.logger.Error("Failed to skip pending flows", zap.Int64("application_id", applicationID), zap.Error(err))
		return 0, fmt.Errorf("failed to skip pending flows: %w", err)
	}
	return result.RowsAffected()
}

func scanFlow(row rowScanner) (*entity.TravelApprovalFlow, error) {
	var flow entity.TravelApprovalFlow
	var level string
	var approvedAt sql.NullTime

	err := row.Scan(
		&flow.ID,
		&flow.ApplicationID,
		&flow.ApproverID,
		&level,
		&flow.Sequence,
		&flow.Status,
		&flow.CanView,
		&flow.CanApprove,
		&flow.IsRequired,
		&flow.TriggeredByRule,
		&approvedAt,
		&flow.Notes,
		&flow.CreatedAt,
		&flow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.ApprovalLevel = entity.ApprovalLevel(level)
	if approvedAt.Valid {
		flow.ApprovedAt = &approvedAt.Time
	}
	return &flow, nil
}

var _ port.FlowRepository = (*FlowRepository)(nil)
