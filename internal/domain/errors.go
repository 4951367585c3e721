package domain

import "errors"

var (
	// ErrConfiguration is returned when required process configuration is missing.
	// It is fatal and never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidAmount is returned when an amount is non-positive or not finite.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency is returned for currencies other than USD and KHR.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrVerificationTransport marks a failed lookup against the payment switch.
	ErrVerificationTransport = errors.New("verification transport error")
)
