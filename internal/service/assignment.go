package service

import (
	"math"
	"math/rand"
)

// Driver assignment bounds.
const (
	minETAMinutes = 5
	maxETAMinutes = 15
	minFare       = 10.00
	maxFare       = 50.00
)

// Assignment is the set of fields assigned to a ride when it enters
// driver_matched. Assigned once, never recomputed.
type Assignment struct {
	DriverName   string
	CarDetails   string
	ETAMinutes   int
	FareEstimate float64
}

// AssignmentPolicy picks a driver for a ride.
// This interface allows tests to substitute deterministic assignments.
type AssignmentPolicy interface {
	Assign() Assignment
}

// Ensure RandomAssignment implements AssignmentPolicy.
var _ AssignmentPolicy = (*RandomAssignment)(nil)

var driverPool = []string{"Kwame Mensah", "Ama Ofori", "John Doe"}

var carPool = []string{"Toyota Corolla - GR1234X", "Hyundai Elantra - GT5678Z"}

// RandomAssignment picks a driver, car, ETA and fare at random. There
// is no real dispatch system behind the conversation flow; rides get a
// driver from a fixed pool, an ETA in [5,15] minutes and a fare in
// [10.00,50.00] rounded to two decimals.
type RandomAssignment struct{}

// NewRandomAssignment creates a new RandomAssignment.
func NewRandomAssignment() *RandomAssignment {
	return &RandomAssignment{}
}

// Assign picks a random driver, car, ETA and fare estimate.
func (p *RandomAssignment) Assign() Assignment {
	return Assignment{
		DriverName:   driverPool[rand.Intn(len(driverPool))],
		CarDetails:   carPool[rand.Intn(len(carPool))],
		ETAMinutes:   minETAMinutes + rand.Intn(maxETAMinutes-minETAMinutes+1),
		FareEstimate: roundFare(minFare + rand.Float64()*(maxFare-minFare)),
	}
}

func roundFare(fare float64) float64 {
	return math.Round(fare*100) / 100
}
