package domain

import "time"

// RideStatus represents the current stage of a ride booking.
type RideStatus string

const (
	// RideStatusAwaitingLocation means the ride was requested and the
	// rider has not yet shared a pickup location.
	RideStatusAwaitingLocation RideStatus = "awaiting_location"

	// RideStatusAwaitingDestination means the pickup location is known
	// and the rider has not yet shared a destination.
	RideStatusAwaitingDestination RideStatus = "awaiting_destination"

	// RideStatusDriverMatched means a driver has been assigned and is
	// on the way; ETAMinutes counts down while in this state.
	RideStatusDriverMatched RideStatus = "driver_matched"

	// RideStatusOnRide means the driver has arrived and the trip is in
	// progress.
	RideStatusOnRide RideStatus = "on_ride"

	// RideStatusCompleted is the terminal state. No transition reaches
	// it yet: the booking flow has no "end ride" command, so rides stay
	// in on_ride. Declared so history rendering and the active-ride
	// query have a terminal state to exclude.
	RideStatusCompleted RideStatus = "completed"
)

// Active reports whether a ride in this status still owns the user's
// conversation. At most one active ride may exist per user.
func (s RideStatus) Active() bool {
	return s != RideStatusCompleted
}

// Ride represents a single booking session, from request to completion.
type Ride struct {
	ID     string
	UserID string
	Status RideStatus

	// Pickup, set when leaving awaiting_location.
	CurrentLocation string
	CurrentLat      float64
	CurrentLng      float64

	// Destination, set when leaving awaiting_destination.
	Destination    string
	DestinationLat float64
	DestinationLng float64

	// Assigned atomically on entry to driver_matched, never recomputed.
	DriverName   string
	CarDetails   string
	ETAMinutes   int
	FareEstimate float64

	RideStart time.Time
}
