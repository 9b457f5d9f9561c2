package services

import "errors"

var (
	ErrAlreadyRegistered   = errors.New("email is already registered")
	ErrUserNotFound        = errors.New("user does not exist")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrCaptcha             = errors.New("captcha verification failed")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrNoOpenOrder         = errors.New("no open order")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPaymentNotConfirmed = errors.New("payment has not been confirmed")
	ErrInvalidWebhook      = errors.New("invalid webhook")
	ErrCartChanged         = errors.New("cart changed after checkout started")
)

// ProcessorError wraps a failure reported by the payment processor. Its text
// is the processor's own message.
type ProcessorError struct {
	Err error
}

func (e *ProcessorError) Error() string { return e.Err.Error() }
func (e *ProcessorError) Unwrap() error { return e.Err }
