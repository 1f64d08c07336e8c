package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebot/internal/repository"
)

// RideHandler exposes read-only ride inspection for operators.
type RideHandler struct {
	rideRepo repository.RideRepository
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideRepo repository.RideRepository) *RideHandler {
	return &RideHandler{rideRepo: rideRepo}
}

// GetRideResponse is the HTTP response for getting a ride.
type GetRideResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Status          string  `json:"status"`
	CurrentLocation string  `json:"current_location,omitempty"`
	Destination     string  `json:"destination,omitempty"`
	DriverName      string  `json:"driver_name,omitempty"`
	CarDetails      string  `json:"car_details,omitempty"`
	ETAMinutes      int     `json:"eta_minutes"`
	FareEstimate    float64 `json:"fare_estimate"`
	RideStart       string  `json:"ride_start"`
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GetRideResponse{
		ID:              ride.ID,
		UserID:          ride.UserID,
		Status:          string(ride.Status),
		CurrentLocation: ride.CurrentLocation,
		Destination:     ride.Destination,
		DriverName:      ride.DriverName,
		CarDetails:      ride.CarDetails,
		ETAMinutes:      ride.ETAMinutes,
		FareEstimate:    ride.FareEstimate,
		RideStart:       ride.RideStart.Format("2006-01-02T15:04:05Z07:00"),
	})
}
