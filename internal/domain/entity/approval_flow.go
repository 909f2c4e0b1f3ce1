package entity

import "time"

// TravelApprovalFlow is one persisted approval task for an application.
// Rows are created as a batch on submission and advanced one at a time.
type TravelApprovalFlow struct {
	ID              int64         `json:"id"`
	ApplicationID   int64         `json:"application_id"`
	ApproverID      int64         `json:"approver_id"`
	ApprovalLevel   ApprovalLevel `json:"approval_level"`
	Sequence        int           `json:"sequence"`
	Status          string        `json:"status"`
	CanView         bool          `json:"can_view"`
	CanApprove      bool          `json:"can_approve"`
	IsRequired      bool          `json:"is_required"`
	TriggeredByRule string        `json:"triggered_by_rule,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsPending reports whether the task still awaits action
func (f *TravelApprovalFlow) IsPending() bool {
	return f.Status == FlowStatusPending
}

// ApproverEntry is a resolved approval step before it is persisted
type ApproverEntry struct {
	User            *User         `json:"user"`
	Level           ApprovalLevel `json:"level"`
	Sequence        int           `json:"sequence"`
	IsRequired      bool          `json:"is_required"`
	CanView         bool          `json:"can_view"`
	CanApprove      bool          `json:"can_approve"`
	TriggeredByRule string        `json:"triggered_by_rule,omitempty"`
}
