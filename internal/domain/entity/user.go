package entity

import "time"

// User represents an employee who can request or approve travel
type User struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	LarkOpenID         string    `json:"lark_open_id,omitempty"`
	Grade              string    `json:"grade"`
	ReportingManagerID *int64    `json:"reporting_manager_id,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ReportsToSelf reports whether the user is recorded as their own reporting manager
func (u *User) ReportsToSelf() bool {
	return u.ReportingManagerID != nil && *u.ReportingManagerID == u.ID
}

// Role is a functional role such as CEO, CHRO or Manager
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserRole assigns a role to a user
type UserRole struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	IsActive   bool      `json:"is_active"`
	AssignedAt time.Time `json:"assigned_at"`
}
