package api

import (
	"fmt"
	"net/http"

	"client_go/internal/domain"
)

// StatusError is a non-2xx response from the chat server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("chat api error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps the status to the matching domain error so callers can use
// errors.Is.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	}
	return nil
}
