package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrSubmitInFlight    = errors.New("order submission already in flight")
	ErrWidgetLoad        = errors.New("payment widget failed to load")
	ErrOrderCreation     = errors.New("payment order creation failed")
	ErrMissingGatewayKey = errors.New("payment gateway key is not configured")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrPaymentCancelled  = errors.New("payment cancelled")
	ErrVerification      = errors.New("payment verification failed")
	ErrCODOrder          = errors.New("cash on delivery order failed")
)

// PaymentFailedError carries the reason the gateway gave for a failed payment.
type PaymentFailedError struct {
	Reason string
}

func (e *PaymentFailedError) Error() string {
	if e.Reason == "" {
		return ErrPaymentFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrPaymentFailed, e.Reason)
}

func (e *PaymentFailedError) Is(target error) bool {
	return target == ErrPaymentFailed
}

// VerificationError means the gateway reported success but the backend did not
// confirm the payment. The identifiers are what support needs to reconcile it.
type VerificationError struct {
	PaymentID      string
	PaymentOrderID string
	Err            error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: payment[%s] order[%s]: %v", ErrVerification, e.PaymentID, e.PaymentOrderID, e.Err)
}

func (e *VerificationError) Is(target error) bool {
	return target == ErrVerification
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
