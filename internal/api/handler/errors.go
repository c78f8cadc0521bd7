package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/sitequeue/internal/api/middleware"
	"github.com/timmy/sitequeue/internal/domain"
	"github.com/timmy/sitequeue/internal/service"
)

// errorStatus maps service errors onto HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrGenerationDisabled), errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable, "not_configured"
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes the operator-facing error body.
func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}

// respondCustomerError writes the customer-facing error body, which only
// distinguishes bad input and unknown ids.
func respondCustomerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		middleware.GetLogger(c).WithError(err).Error("Customer request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status temporarily unavailable"})
	}
}
