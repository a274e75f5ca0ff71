package fhir

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError reports a credential failure against the clinical source.
// It aborts a whole ingest batch.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("fhir authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// APIError reports a 4xx/5xx answer from the FHIR server for one resource.
type APIError struct {
	StatusCode int
	Resource   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fhir server returned status %d for %s: %s", e.StatusCode, e.Resource, e.Message)
}

// TransportError reports that the FHIR server could not be reached.
type TransportError struct {
	Resource string
	Err      error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the user-visible failure body.
type ErrorResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewErrorResponse maps err onto the status it should be reported with.
func NewErrorResponse(err error) ErrorResponse {
	var authErr *AuthError
	var apiErr *APIError

	switch {
	case errors.As(err, &authErr):
		return ErrorResponse{Message: authErr.Error(), StatusCode: http.StatusUnauthorized}
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return ErrorResponse{Message: apiErr.Error(), StatusCode: status}
	default:
		return ErrorResponse{Message: err.Error(), StatusCode: http.StatusInternalServerError}
	}
}
