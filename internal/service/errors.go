package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to status codes with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrWindowExpired   = errors.New("window expired")
	ErrGateway         = errors.New("payment gateway error")
	ErrUnauthenticated = errors.New("unauthenticated")
)

var (
	ErrEmptyCart           = newError(ErrInvalidInput, "no items in cart")
	ErrInvalidQuantity     = newError(ErrInvalidInput, "quantity must be between 1 and 2147483647")
	ErrAmountTooLarge      = newError(ErrInvalidInput, "order total exceeds the maximum chargeable amount")
	ErrMissingShipping     = newError(ErrInvalidInput, "address, postal code and city are required")
	ErrInvalidStatus       = newError(ErrInvalidInput, "status must be shipped or delivered")
	ErrProductNotFound     = newError(ErrNotFound, "product not found")
	ErrCollectionNotFound  = newError(ErrNotFound, "collection not found")
	ErrOrderNotFound       = newError(ErrNotFound, "order not found")
	ErrOrderNotCancellable = newError(ErrInvalidState, "this order can no longer be cancelled")
)

// Error is a domain error of a given kind with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// ProductNotFoundError names the product id a cart referenced but the
// catalog does not contain.
type ProductNotFoundError struct {
	ID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with id %d not found", e.ID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrNotFound }

// GatewayError carries the payment processor's message back to the caller.
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string { return e.Message }

func (e *GatewayError) Unwrap() []error { return []error{ErrGateway, e.Err} }
