package event

// Type identifies the type of domain event
type Type string

const (
	TypeApplicationSubmitted    Type = "application.submitted"
	TypeApplicationSelfApproved Type = "application.self_approved"
	TypeApprovalRequested       Type = "approval.requested"
	TypeApprovalCompleted       Type = "approval.completed"
	TypeApplicationRejected     Type = "application.rejected"
	TypeApplicationCancelled    Type = "application.cancelled"
	TypeStatusChanged           Type = "application.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeApplicationSubmitted,
		TypeApplicationSelfApproved,
		TypeApprovalRequested,
		TypeApprovalCompleted,
		TypeApplicationRejected,
		TypeApplicationCancelled,
		TypeStatusChanged:
		return true
	default:
		return false
	}
}
