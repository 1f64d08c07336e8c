package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"ridebot/internal/domain"
	"ridebot/internal/repository"
)

// uniqueViolation is the PostgreSQL error code raised by the partial
// unique index that allows one non-terminal ride per user.
const uniqueViolation = "23505"

const rideColumns = `id, user_id, status, current_location, current_lat, current_lng,
	destination, destination_lat, destination_lng,
	driver_name, car_details, estimated_arrival_time, fare_estimate, ride_start`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, user_id, status, current_location, current_lat, current_lng,
			destination, destination_lat, destination_lng,
			driver_name, car_details, estimated_arrival_time, fare_estimate, ride_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.UserID,
		ride.Status,
		nullString(ride.CurrentLocation),
		ride.CurrentLat,
		ride.CurrentLng,
		nullString(ride.Destination),
		ride.DestinationLat,
		ride.DestinationLng,
		nullString(ride.DriverName),
		nullString(ride.CarDetails),
		ride.ETAMinutes,
		ride.FareEstimate,
		ride.RideStart,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrActiveRideExists
		}
		return err
	}
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetActiveForUser retrieves the user's single non-terminal ride.
func (r *RideRepository) GetActiveForUser(ctx context.Context, userID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE user_id = $1 AND status <> $2`
	return scanRide(r.q.QueryRowContext(ctx, query, userID, domain.RideStatusCompleted))
}

// ListByStatus retrieves all rides in any of the given statuses.
func (r *RideRepository) ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = ANY($1)`

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.q.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRides(rows)
}

// ListRecentForUser retrieves up to limit rides ordered by ride start descending.
func (r *RideRepository) ListRecentForUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE user_id = $1 ORDER BY ride_start DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRides(rows)
}

// UpdateIfStatus writes the ride's mutable fields only if the stored row
// is still in the expected status.
func (r *RideRepository) UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error {
	query := `
		UPDATE rides
		SET status = $1, current_location = $2, current_lat = $3, current_lng = $4,
			destination = $5, destination_lat = $6, destination_lng = $7,
			driver_name = $8, car_details = $9, estimated_arrival_time = $10, fare_estimate = $11
		WHERE id = $12 AND status = $13
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		nullString(ride.CurrentLocation),
		ride.CurrentLat,
		ride.CurrentLng,
		nullString(ride.Destination),
		ride.DestinationLat,
		ride.DestinationLng,
		nullString(ride.DriverName),
		nullString(ride.CarDetails),
		ride.ETAMinutes,
		ride.FareEstimate,
		ride.ID,
		expected,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrStatusConflict
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row *sql.Row) (*domain.Ride, error) {
	ride, err := scanRideFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

func scanRideFields(s rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var currentLocation, destination, driverName, carDetails sql.NullString

	err := s.Scan(
		&ride.ID,
		&ride.UserID,
		&ride.Status,
		&currentLocation,
		&ride.CurrentLat,
		&ride.CurrentLng,
		&destination,
		&ride.DestinationLat,
		&ride.DestinationLng,
		&driverName,
		&carDetails,
		&ride.ETAMinutes,
		&ride.FareEstimate,
		&ride.RideStart,
	)
	if err != nil {
		return nil, err
	}

	ride.CurrentLocation = currentLocation.String
	ride.Destination = destination.String
	ride.DriverName = driverName.String
	ride.CarDetails = carDetails.String

	return &ride, nil
}

func collectRides(rows *sql.Rows) ([]*domain.Ride, error) {
	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRideFields(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
