package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Directory implements approval.RoleDirectory over the user and role tables
type Directory struct {
	userRepo port.UserRepository
	roleRepo port.RoleRepository
}

var _ approval.RoleDirectory = (*Directory)(nil)

// New creates a new role directory
func New(userRepo port.UserRepository, roleRepo port.RoleRepository) *Directory {
	return &Directory{userRepo: userRepo, roleRepo: roleRepo}
}

// FindActiveUserForRole returns the active user with the oldest active
// assignment to roleName, or nil when nobody holds it
func (d *Directory) FindActiveUserForRole(ctx context.Context, roleName string) (*entity.User, error) {
	name := strings.TrimSpace(roleName)
	if name == "" {
		return nil, nil
	}

	holders, err := d.roleRepo.ListActiveHolders(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list holders of role %s: %w", name, err)
	}
	for _, u := range holders {
		if u != nil && u.IsActive {
			return u, nil
		}
	}
	return nil, nil
}

// FindUser returns the user with id, or nil when it does not exist
func (d *Directory) FindUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := d.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// HoldsRole reports whether userID is an active holder of roleName, whichever
// holder FindActiveUserForRole would pick
func (d *Directory) HoldsRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	name := strings.TrimSpace(roleName)
	if name == "" {
		return false, nil
	}

	holders, err := d.roleRepo.ListActiveHolders(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to list holders of role %s: %w", name, err)
	}
	for _, u := range holders {
		if u != nil && u.IsActive && u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}
