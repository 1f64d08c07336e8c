package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrStatusConflict is returned when a conditional ride update finds
	// the row no longer in the expected status. Callers treat this as a
	// benign race loss and skip the update.
	ErrStatusConflict = errors.New("ride not in expected status")

	// ErrActiveRideExists is returned when creating a ride for a user
	// who already has one outside the terminal state.
	ErrActiveRideExists = errors.New("user already has an active ride")
)
