package domain

import "errors"

// Sentinel errors for the client.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMalformedResponse = errors.New("malformed server response")
	ErrStaleResult       = errors.New("result belongs to a cancelled fetch")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrTransportClosed   = errors.New("realtime transport closed")
)
