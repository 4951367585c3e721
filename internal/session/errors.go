package session

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for a checkout.
	ErrSessionNotFound = errors.New("payment session not found")

	// ErrSessionCompleted is returned when a verified session would be replaced.
	ErrSessionCompleted = errors.New("payment session already verified")

	// ErrSessionLocked is returned when another instance runs the session for this checkout.
	ErrSessionLocked = errors.New("payment session is held by another instance")
)
