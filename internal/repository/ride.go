package repository

import (
	"context"

	"ridebot/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. Returns ErrActiveRideExists if the
	// user already has a ride outside the terminal state.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetActiveForUser retrieves the user's single non-terminal ride,
	// or ErrNotFound if the user has no booking in progress.
	GetActiveForUser(ctx context.Context, userID string) (*domain.Ride, error)

	// ListByStatus retrieves all rides in any of the given statuses.
	ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error)

	// ListRecentForUser retrieves up to limit rides for the user,
	// ordered by ride start descending.
	ListRecentForUser(ctx context.Context, userID string, limit int) ([]*domain.Ride, error)

	// UpdateIfStatus writes the ride's mutable fields only if the
	// stored row is still in the expected status. Returns
	// ErrStatusConflict when the precondition fails, so a scheduler
	// tick and a concurrent webhook cannot both apply stale writes.
	UpdateIfStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus) error
}
