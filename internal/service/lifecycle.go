package service

import (
	"fmt"
	"time"

	"ridebot/internal/domain"
)

// Reply texts sent back on the conversation channel.
const (
	replyWelcome = "Welcome! Please provide your full name to start registration."

	replyRequestLocation    = "Please share your current location using the location button."
	replyRequestDestination = "Thanks for sharing your current location. Now, please share your destination."

	replyHelp      = "To book a ride, type 'ride' and follow the instructions."
	replyNoHistory = "You have no ride history."

	replyBadLocation = "That location could not be read. Please share it using the location button."

	replyTryAgain = "Something went wrong. Please try again later."
)

const (
	driverMatchedFormat  = "Driver matched! 🚗\nDriver: %s\nCar: %s\nETA: %d minutes\nFare Estimate: GHS %.2f"
	etaUpdateFormat      = "Your driver %s is on the way! ETA: %d minutes."
	driverArrivedFormat  = "Your driver %s has arrived. Your ride is starting now!"
	rideInProgressFormat = "Your ride with %s is in progress."
)

// Lifecycle computes ride state transitions. It operates on in-memory
// snapshots and returns the next snapshot plus the text to send; it
// never touches storage.
type Lifecycle struct {
	policy AssignmentPolicy
}

// NewLifecycle creates a Lifecycle with the given assignment policy.
func NewLifecycle(policy AssignmentPolicy) *Lifecycle {
	return &Lifecycle{policy: policy}
}

// RequestRide builds a new ride in awaiting_location for a user with no
// active booking.
func (l *Lifecycle) RequestRide(userID, rideID string, start time.Time) (domain.Ride, string) {
	ride := domain.Ride{
		ID:        rideID,
		UserID:    userID,
		Status:    domain.RideStatusAwaitingLocation,
		RideStart: start,
	}
	return ride, replyRequestLocation
}

// ShareLocation advances a ride that is collecting locations. In
// awaiting_location the coordinates become the pickup; in
// awaiting_destination they become the destination and the assignment
// policy fills in driver, car, ETA and fare atomically with the status
// change. Any other status returns ErrNotAwaitingLocation.
func (l *Lifecycle) ShareLocation(ride domain.Ride, lat, lng float64) (domain.Ride, string, error) {
	if !validLatitude(lat) || !validLongitude(lng) {
		return ride, "", ErrInvalidCoordinates
	}

	switch ride.Status {
	case domain.RideStatusAwaitingLocation:
		ride.CurrentLocation = formatPoint(lat, lng)
		ride.CurrentLat = lat
		ride.CurrentLng = lng
		ride.Status = domain.RideStatusAwaitingDestination
		return ride, replyRequestDestination, nil

	case domain.RideStatusAwaitingDestination:
		ride.Destination = formatPoint(lat, lng)
		ride.DestinationLat = lat
		ride.DestinationLng = lng
		ride.Status = domain.RideStatusDriverMatched

		a := l.policy.Assign()
		ride.DriverName = a.DriverName
		ride.CarDetails = a.CarDetails
		ride.ETAMinutes = a.ETAMinutes
		ride.FareEstimate = a.FareEstimate

		reply := fmt.Sprintf(driverMatchedFormat, a.DriverName, a.CarDetails, a.ETAMinutes, a.FareEstimate)
		return ride, reply, nil

	default:
		return ride, "", ErrNotAwaitingLocation
	}
}

// Tick advances a driver_matched ride by one scheduler interval: the
// ETA drops by one minute, floored at zero. At zero the ride moves to
// on_ride and the notification is the arrival message instead of an
// ETA update. Driver fields and the fare are never recomputed.
func (l *Lifecycle) Tick(ride domain.Ride) (domain.Ride, string) {
	eta := ride.ETAMinutes - 1
	if eta < 0 {
		eta = 0
	}
	ride.ETAMinutes = eta

	if eta == 0 {
		ride.Status = domain.RideStatusOnRide
		return ride, fmt.Sprintf(driverArrivedFormat, ride.DriverName)
	}

	return ride, fmt.Sprintf(etaUpdateFormat, ride.DriverName, eta)
}

// ProgressReply re-prompts for the pending step of an active ride.
// Used when a rider types "ride" while a booking already exists, so a
// second concurrent ride is never created.
func (l *Lifecycle) ProgressReply(ride domain.Ride) string {
	switch ride.Status {
	case domain.RideStatusAwaitingLocation:
		return replyRequestLocation
	case domain.RideStatusAwaitingDestination:
		return replyRequestDestination
	case domain.RideStatusDriverMatched:
		return fmt.Sprintf(etaUpdateFormat, ride.DriverName, ride.ETAMinutes)
	case domain.RideStatusOnRide:
		return fmt.Sprintf(rideInProgressFormat, ride.DriverName)
	default:
		return replyHelp
	}
}

func formatPoint(lat, lng float64) string {
	return fmt.Sprintf("Lat: %g, Lon: %g", lat, lng)
}

func validLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func validLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
