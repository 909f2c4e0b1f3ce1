package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

// RoleRepository implements port.RoleRepository
type RoleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB, logger *zap.Logger) port.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a role
func (r *RoleRepository) Create(ctx context.Context, role *entity.Role) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO roles (name) VALUES (?)`, strings.TrimSpace(role.Name))
	if err != nil {
		r.logger.Error("Failed to create role", zap.String("name", role.Name), zap.Error(err))
		return fmt.Errorf("failed to create role: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	role.ID = id
	return nil
}

// GetByName retrieves a role by name, case-insensitively
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name FROM roles WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name),
	).Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get role", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

// Assign grants a role to a user, reactivating an earlier assignment
func (r *RoleRepository) Assign(ctx context.Context, assignment *entity.UserRole) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, is_active)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, role_id) DO UPDATE SET is_active = excluded.is_active
	`

	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		assignment.UserID, assignment.RoleID, assignment.IsActive); err != nil {
		r.logger.Error("Failed to assign role",
			zap.Int64("user_id", assignment.UserID),
			zap.Int64("role_id", assignment.RoleID),
			zap.Error(err))
		return fmt.Errorf("failed to assign role: %w", err)
	}

	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, assigned_at FROM user_roles WHERE user_id = ? AND role_id = ?`,
		assignment.UserID, assignment.RoleID,
	).Scan(&assignment.ID, &assignment.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to read role assignment: %w", err)
	}
	return nil
}

// ListActiveHolders returns active users holding the role, oldest assignment first
func (r *RoleRepository) ListActiveHolders(ctx context.Context, roleName string) ([]*entity.User, error) {
	query := `
		SELECT u.id, u.name, u.email, u.lark_open_id, u.grade, u.reporting_manager_id,
			u.is_active, u.created_at, u.updated_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		JOIN users u ON u.id = ur.user_id
		WHERE ro.name = ? COLLATE NOCASE AND ur.is_active = 1 AND u.is_active = 1
		ORDER BY ur.assigned_at ASC, ur.id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, strings.TrimSpace(roleName))
	if err != nil {
		r.logger.Error("Failed to list role holders", zap.String("role", roleName), zap.Error(err))
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

var _ port.RoleRepository = (*RoleRepository)(nil)
