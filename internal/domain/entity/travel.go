package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TravelApplication is an employee's request to travel
type TravelApplication struct {
	ID                 int64           `json:"id"`
	EmployeeID         int64           `json:"employee_id"`
	Purpose            string          `json:"purpose"`
	Status             string          `json:"status"`
	EstimatedTotalCost decimal.Decimal `json:"estimated_total_cost"`
	CurrentApproverID  *int64          `json:"current_approver_id,omitempty"`
	SelfApproved       bool            `json:"self_approved"`
	SubmittedAt        *time.Time      `json:"submitted_at,omitempty"`
	SettlementDueDate  *time.Time      `json:"settlement_due_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Trips []*TripSegment `json:"trips,omitempty"`
}

// BookingCount returns the number of bookings across all trips
func (a *TravelApplication) BookingCount() int {
	n := 0
	for _, trip := range a.Trips {
		n += len(trip.Bookings)
	}
	return n
}

// TripSegment is one leg of a travel application
type TripSegment struct {
	ID            int64      `json:"id"`
	ApplicationID int64      `json:"application_id"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	Bookings []*Booking `json:"bookings,omitempty"`
}

// Booking is a single transport booking request within a trip
type Booking struct {
	ID             int64                  `json:"id"`
	TripID         int64                  `json:"trip_id"`
	ModeName       string                 `json:"mode_name"`
	EstimatedCost  decimal.Decimal        `json:"estimated_cost"`
	BookingDetails map[string]interface{} `json:"booking_details,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
