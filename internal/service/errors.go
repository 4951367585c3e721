package service

import "errors"

var (
	// ErrInvalidContentHash is returned when a verification hash is not 32 hex characters.
	ErrInvalidContentHash = errors.New("invalid md5 hash")

	// ErrInvalidPayload is returned when a KHQR string cannot be decoded.
	ErrInvalidPayload = errors.New("invalid khqr payload")

	// ErrInvalidCheckoutID is returned when checkout ID is empty.
	ErrInvalidCheckoutID = errors.New("invalid checkout id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrEmptyOrder is returned when an order has no items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrInvalidOrderItem is returned when an order line fails validation.
	ErrInvalidOrderItem = errors.New("invalid order item")

	// ErrInvalidPaymentMethod is returned when payment method is invalid.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrMissingPaymentReference is returned when a Bakong order has no transaction id.
	ErrMissingPaymentReference = errors.New("bakong order requires a payment reference")
)
