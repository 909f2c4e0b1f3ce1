package entity

import "time"

// ApprovalHistory represents the audit trail of a travel application
type ApprovalHistory struct {
	ID             int64     `json:"id"`
	ApplicationID  int64     `json:"application_id"`
	ActorID        *int64    `json:"actor_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Action         string    `json:"action"`
	Notes          string    `json:"notes,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// History action types
const (
	HistoryActionSubmit       = "SUBMIT"
	HistoryActionSelfApprove  = "SELF_APPROVE"
	HistoryActionApprove      = "APPROVE"
	HistoryActionReject       = "REJECT"
	HistoryActionCancel       = "CANCEL"
	HistoryActionReturnDraft  = "RETURN_TO_DRAFT"
	HistoryActionBookingStart = "BOOKING_START"
	HistoryActionBooked       = "BOOKED"
	HistoryActionComplete     = "COMPLETE"
	HistoryActionAdvance      = "ADVANCE"
)
