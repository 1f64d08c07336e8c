package service

import "errors"

var (
	// ErrInvalidPhone is returned when an inbound event carries no
	// contact address.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrInvalidCoordinates is returned when a location payload is
	// malformed or out of range. The caller replies with a corrective
	// prompt and no state changes.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrNotAwaitingLocation is returned when a location share arrives
	// for a ride that is not collecting locations.
	ErrNotAwaitingLocation = errors.New("ride not awaiting a location")
)
