package entity

// Application status constants for TravelApplication
const (
	StatusDraft             = "draft"
	StatusSubmitted         = "submitted"
	StatusPendingManager    = "pending_manager"
	StatusApprovedManager   = "approved_manager"
	StatusRejectedManager   = "rejected_manager"
	StatusPendingCHRO       = "pending_chro"
	StatusApprovedCHRO      = "approved_chro"
	StatusRejectedCHRO      = "rejected_chro"
	StatusPendingCEO        = "pending_ceo"
	StatusApprovedCEO       = "approved_ceo"
	StatusRejectedCEO       = "rejected_ceo"
	StatusPendingTravelDesk = "pending_travel_desk"
	StatusBookingInProgress = "booking_in_progress"
	StatusBooked            = "booked"
	StatusCompleted         = "completed"
	StatusCancelled         = "cancelled"
)

// ApprovalLevel identifies the role an approver acts under
type ApprovalLevel string

const (
	LevelManager      ApprovalLevel = "manager"
	LevelCHRO         ApprovalLevel = "chro"
	LevelCEO          ApprovalLevel = "ceo"
	LevelTravelDesk   ApprovalLevel = "travel_desk"
	LevelSelfApproval ApprovalLevel = "self_approval"
)

// String returns the string representation of the level
func (l ApprovalLevel) String() string {
	return string(l)
}

// PendingStatus returns the application status that waits on this level
func (l ApprovalLevel) PendingStatus() string {
	return "pending_" + string(l)
}

// ApprovedStatus returns the application status recorded once this level approves
func (l ApprovalLevel) ApprovedStatus() string {
	return "approved_" + string(l)
}

// RejectedStatus returns the application status recorded when this level rejects
func (l ApprovalLevel) RejectedStatus() string {
	return "rejected_" + string(l)
}

// Flow status constants for TravelApprovalFlow
const (
	FlowStatusPending  = "pending"
	FlowStatusApproved = "approved"
	FlowStatusRejected = "rejected"
	FlowStatusSkipped  = "skipped"
)

// Approval actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Functional role names resolved through the role directory
const (
	RoleCEO        = "CEO"
	RoleCHRO       = "CHRO"
	RoleManager    = "Manager"
	RoleTravelDesk = "Travel Desk"
)

// Booking detail keys read by the booking aggregator
const (
	DetailDistanceKm    = "distance_km"
	DetailIsDisposal    = "is_disposal"
	DetailTransportType = "transport_type"

	TransportTypeDisposal = "disposal"
)
