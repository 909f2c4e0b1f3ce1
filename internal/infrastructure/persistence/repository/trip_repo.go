package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
)

// TripRepository implements port.TripRepository
type TripRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB, logger *zap.Logger) port.TripRepository {
	return &TripRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a trip segment
func (r *TripRepository) Create(ctx context.Context, trip *entity.TripSegment) error {
	query := `
		INSERT INTO trip_segments (
			application_id, origin, destination, departure_date, return_date
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		trip.ApplicationID,
		trip.Origin,
		trip.Destination,
		trip.DepartureDate,
		trip.ReturnDate,
	)
	if err != nil {
		r.logger.Error("Failed to create trip", zap.Int64("application_id", trip.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to create trip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	trip.ID = id
	return nil
}

// CreateBooking creates a booking under a trip
func (r *TripRepository) CreateBooking(ctx context.Context, booking *entity.Booking) error {
	details := booking.BookingDetails
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode booking details: %w", err)
	}

	query := `
		INSERT INTO bookings (trip_id, mode_name, estimated_cost, booking_details)
		VALUES (?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		booking.TripID,
		booking.ModeName,
		booking.EstimatedCost,
		string(detailsJSON),
	)
	if err != nil {
		r.logger.Error("Failed to create booking", zap.Int64("trip_id", booking.TripID), zap.Error(err))
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	booking.ID = id
	return nil
}

// ListByApplication returns trips in id order with bookings loaded
func (r *TripRepository) ListByApplication(ctx context.Context, applicationID int64) ([]*entity.TripSegment, error) {
	trips, err := r.listTrips(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return trips, nil
	}

	query := `
		SELECT b.id, b.trip_id, b.mode_name, b.estimated_cost, b.booking_details, b.created_at
		FROM bookings b
		JOIN trip_segments t ON t.id = b.trip_id
		WHERE t.application_id = ?
		ORDER BY b.trip_id ASC, b.id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to list bookings", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	byTrip := make(map[int64]*entity.TripSegment, len(trips))
	for _, trip := range trips {
		byTrip[trip.ID] = trip
	}

	for rows.Next() {
		var booking entity.Booking
		var detailsJSON string
		if err := rows.Scan(
			&booking.ID,
			&booking.TripID,
			&booking.ModeName,
			&booking.EstimatedCost,
			&detailsJSON,
			&booking.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		if detailsJSON != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &booking.BookingDetails); err != nil {
				r.logger.Warn("Ignoring malformed booking details",
					zap.Int64("booking_id", booking.ID), zap.Error(err))
				booking.BookingDetails = nil
			}
		}
		if trip, ok := byTrip[booking.TripID]; ok {
			trip.Bookings = append(trip.Bookings, &booking)
		}
	}

	return trips, rows.Err()
}

func (r *TripRepository) listTrips(ctx context.Context, applicationID int64) ([]*entity.TripSegment, error) {
	query := `
		SELECT id, application_id, origin, destination, departure_date, return_date, created_at
		FROM trip_segments
		WHERE application_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to list trips", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	trips := []*entity.TripSegment{}
	for rows.Next() {
		var trip entity.TripSegment
		var departure, ret sql.NullTime
		if err := rows.Scan(
			&trip.ID,
			&trip.ApplicationID,
			&trip.Origin,
			&trip.Destination,
			&departure,
			&ret,
			&trip.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if departure.Valid {
			trip.DepartureDate = &departure.Time
		}
		if ret.Valid {
			trip.ReturnDate = &ret.Time
		}
		trips = append(trips, &trip)
	}
	return trips, rows.Err()
}

var _ port.TripRepository = (*TripRepository)(nil)
