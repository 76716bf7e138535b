package handler

import (
	"errors"
	"net/http"

	"github.com/adythan1/Tax-Returns/service"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// intakeStatusFor maps a submission error: only missing fields are the
// client's fault, every storage failure is a server error.
func intakeStatusFor(err error) int {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// failure builds the error envelope shared by every endpoint
func failure(message string, err error) gin.H {
	body := gin.H{"success": false, "message": message}
	if reason := service.Reason(err); reason != "" {
		body["reason"] = reason
	}
	return body
}

func messageFor(status int, fallback string) string {
	switch status {
	case http.StatusForbidden:
		return "Access denied"
	case http.StatusNotFound:
		return "Not found"
	default:
		return fallback
	}
}
