package pocclient

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError is one entry of a validation problem.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response decoded from RFC 7807 Problem Details.
type APIError struct {
	StatusCode int          `json:"status"`
	Type       string       `json:"type"`
	Title      string       `json:"title"`
	Detail     string       `json:"detail"`
	Errors     []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pocportal: %d %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("pocportal: %d %s", e.StatusCode, e.Title)
}

// IsNotFound reports whether err is a 404 from the portal.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is a 401 from the portal.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsValidation reports whether err is a 422 from the portal.
func IsValidation(err error) bool {
	return hasStatus(err, http.StatusUnprocessableEntity)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
