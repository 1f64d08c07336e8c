package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebot/internal/repository"
	"ridebot/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidCoordinates):
		return http.StatusBadRequest

	case errors.Is(err, repository.ErrStatusConflict),
		errors.Is(err, repository.ErrActiveRideExists):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}
