package service

import "errors"

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
)

// Error is the tagged error type carried by every client-visible failure.
// The HTTP layer maps Kind to 400/404/409/500.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// BadRequest builds a client-input error.
func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// NotFound builds a missing-resource error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Conflict builds a concurrent-modification error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// KindOf extracts the Kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinel errors returned by services and repositories. Each carries its
// Kind so wrapping with %w preserves the HTTP mapping.
var (
	ErrUserNotFound    = NotFound("user not found")
	ErrProductNotFound = NotFound("product not found")
	ErrOrderNotFound   = NotFound("order not found")
	ErrPaymentNotFound = NotFound("payment not found")
	ErrCouponNotFound  = NotFound("coupon not found")

	ErrCouponAlreadyUsed = Conflict("coupon already used")

	ErrInsufficientPoint = BadRequest("insufficient point balance")
	ErrInsufficientStock = BadRequest("insufficient stock")
	ErrDuplicateProduct  = BadRequest("duplicate product in order items")
	ErrInvalidQuantity   = BadRequest("quantity must be at least 1")
	ErrInvalidCard       = BadRequest("invalid card number")
	ErrCardRequired      = BadRequest("card details required for paid orders")
	ErrNegativePaid      = BadRequest("used point exceeds order total")
	ErrOrderNotPending   = BadRequest("order is not in a pending state")
	ErrInvalidTransition = BadRequest("invalid payment state transition")
)
