package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/domain"
	"coffeeshop/internal/khqr"
	"coffeeshop/internal/repository"
	"coffeeshop/internal/service"
	"coffeeshop/internal/session"
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

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, khqr.ErrFieldTooLong),
		errors.Is(err, service.ErrInvalidContentHash),
		errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, service.ErrInvalidCheckoutID),
		errors.Is(err, service.ErrInvalidOrderID),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidOrderItem),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrMissingPaymentReference):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, session.ErrSessionCompleted),
		errors.Is(err, session.ErrSessionLocked),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
