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

// ApplicationRepository implements port.ApplicationRepository
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) port.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

const applicationColumns = `id, employee_id, purpose, status, estimated_total_cost,
	current_approver_id, self_approved, submitted_at, settlement_due_date,
	created_at, updated_at`

// Create creates a new travel application
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.TravelApplication) error {
	query := `
		INSERT INTO travel_applications (
			employee_id, purpose, status, estimated_total_cost,
			current_approver_id, settlement_due_date
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	status := app.Status
	if status == "" {
		status = entity.StatusDraft
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		app.EmployeeID,
		app.Purpose,
		status,
		app.EstimatedTotalCost,
		app.CurrentApproverID,
		app.SettlementDueDate,
	)
	if err != nil {
		r.logger.Error("Failed to create application", zap.Int64("employee_id", app.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	app.ID = id
	app.Status = status
	return nil
}

// GetByID retrieves an application by ID without its trips
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*entity.TravelApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM travel_applications WHERE id = ?`

	app, err := scanApplication(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// List retrieves applications newest first, optionally filtered by status
func (r *ApplicationRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM travel_applications
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, status, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list applications", zap.String("status", status), zap.Error(err))
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*entity.TravelApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateStatus sets the status and current approver
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id int64, status string, currentApproverID *int64) error {
	query := `
		UPDATE travel_applications
		SET status = ?, current_approver_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, status, currentApproverID, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireRow(result, "application", id)
}

// MarkSubmitted records the submission time and whether the chain was self-approved
func (r *ApplicationRepository) MarkSubmitted(ctx context.Context, id int64, submittedAt time.Time, selfApproved bool) error {
	query := `
		UPDATE travel_applications
		SET submitted_at = ?, self_approved = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, submittedAt, selfApproved, submittedAt, id)
	if err != nil {
		r.logger.Error("Failed to mark application submitted", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark submitted: %w", err)
	}
	return requireRow(result, "application", id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*entity.TravelApplication, error) {
	var app entity.TravelApplication
	var approverID sql.NullInt64
	var submittedAt, settlementDue sql.NullTime

	err := row.Scan(
		&app.ID,
		&app.EmployeeID,
		&app.Purpose,
		&app.Status,
		&app.EstimatedTotalCost,
		&approverID,
		&app.SelfApproved,
		&submittedAt,
		&settlementDue,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approverID.Valid {
		app.CurrentApproverID = &approverID.Int64
	}
	if submittedAt.Valid {
		app.SubmittedAt = &submittedAt.Time
	}
	if settlementDue.Valid {
		app.SettlementDueDate = &settlementDue.Time
	}
	return &app, nil
}

// requireRow turns a zero-row update into port.ErrNotFound
func requireRow(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, port.ErrNotFound)
	}
	return nil
}

var _ port.ApplicationRepository = (*ApplicationRepository)(nil)
