package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// ErrNotFound is returned by services when a referenced record does not exist.
// Repositories themselves return nil, nil for missing rows.
var ErrNotFound = errors.New("record not found")

// ApplicationRepository defines persistence operations for TravelApplication
type ApplicationRepository interface {
	Create(ctx context.Context, app *entity.TravelApplication) error
	GetByID(ctx context.Context, id int64) (*entity.TravelApplication, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.TravelApplication, error)
	UpdateStatus(ctx context.Context, id int64, status string, currentApproverID *int64) error
	MarkSubmitted(ctx context.Context, id int64, submittedAt time.Time, selfApproved bool) error
}

// TripRepository defines persistence operations for trip segments and their bookings
type TripRepository interface {
	Create(ctx context.Context, trip *entity.TripSegment) error
	CreateBooking(ctx context.Context, booking *entity.Booking) error
	// ListByApplication returns trips in id order with bookings loaded
	ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TripSegment, error)
}

// FlowRepository defines persistence operations for TravelApprovalFlow
type FlowRepository interface {
	Create(ctx context.Context, flow *entity.TravelApprovalFlow) error
	DeleteByApplication(ctx context.Context, applicationID int64) error
	// ListByApplication returns flows in sequence order
	ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TravelApprovalFlow, error)
	// FirstPending returns the pending flow with the lowest sequence
	FirstPending(ctx context.Context, applicationID int64) (*entity.TravelApprovalFlow, error)
	// UpdateStatusIfPending changes a flow only while it is still pending and
	// reports whether a row was changed
	UpdateStatusIfPending(ctx context.Context, id int64, status, notes string, actedAt time.Time) (bool, error)
	CountPendingRequired(ctx context.Context, applicationID int64) (int, error)
	SkipPending(ctx context.Context, applicationID int64, notes string) (int64, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	SetReportingManager(ctx context.Context, userID int64, managerID *int64) error
}

// RoleRepository defines persistence operations for Role and UserRole
type RoleRepository interface {
	Create(ctx context.Context, role *entity.Role) error
	GetByName(ctx context.Context, name string) (*entity.Role, error)
	Assign(ctx context.Context, assignment *entity.UserRole) error
	// ListActiveHolders returns active users holding the role, oldest assignment first
	ListActiveHolders(ctx context.Context, roleName string) ([]*entity.User, error)
}

// PolicyRepository defines persistence operations for TravelPolicy
type PolicyRepository interface {
	Create(ctx context.Context, policy *entity.TravelPolicy) error
	// ListActiveByType returns active policies ordered by effective_from DESC, id ASC
	ListActiveByType(ctx context.Context, policyType entity.PolicyType) ([]*entity.TravelPolicy, error)
}

// MatrixRepository defines persistence operations for ApprovalMatrixRule
type MatrixRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalMatrixRule) error
	// ListActive returns active rules for mode and grade, case-insensitively, in id order
	ListActive(ctx context.Context, mode, grade string) ([]*entity.ApprovalMatrixRule, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	ListByApplication(ctx context.Context, applicationID int64) ([]*entity.ApprovalHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
