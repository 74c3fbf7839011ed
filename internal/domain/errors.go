package domain

import "errors"

var (
	// Validation failures. These are client-caused and never persist state.
	ErrEmptyCart      = errors.New("cart is empty")
	ErrInvalidAddress = errors.New("shipping address is incomplete")
	ErrInvalidOrder   = errors.New("order failed validation")

	// Lookup failures.
	ErrOrderNotFound  = errors.New("order not found")
	ErrReturnNotFound = errors.New("return request not found")

	// Business-rule rejections.
	ErrReturnWindowExpired = errors.New("return window has expired")
	ErrIneligibleStatus    = errors.New("order status is not eligible for return")
	ErrInvalidTransition   = errors.New("invalid order status transition")

	// Concurrent writers raced on the same order; the caller may retry
	// after re-reading.
	ErrConflict = errors.New("order was modified concurrently")

	// ErrDuplicateOrderNumber surfaces a uniqueness violation on insert so
	// the sequence retry loop can re-number and try again.
	ErrDuplicateOrderNumber = errors.New("order number already exists")

	// ErrDuplicateReturnID is the same signal for return ids, raised when a
	// concurrent filing claimed the id first.
	ErrDuplicateReturnID = errors.New("return id already exists")
)
