package checkout

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// backendMessager is implemented by API errors that carry a message from the backend.
type backendMessager interface {
	BackendMessage() string
}

// UserMessage turns a checkout error into a message for the customer.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		verr   *ValidationError
		failed *PaymentFailedError
		unver  *VerificationError
	)

	switch {
	case errors.As(err, &verr):
		msgs := make([]string, 0, len(verr.Fields))
		for _, field := range slices.Sorted(maps.Keys(verr.Fields)) {
			msgs = append(msgs, verr.Fields[field])
		}
		return "Please check your address: " + strings.Join(msgs, ". ") + "."

	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrSubmitInFlight):
		return "Your order is already being placed."
	case errors.Is(err, ErrInvalidTransition):
		return "This checkout step is not available right now."
	case errors.Is(err, ErrWidgetLoad):
		return "Failed to load payment gateway. Please try again."
	case errors.Is(err, ErrOrderCreation):
		return "Could not start the payment. Please try again."
	case errors.Is(err, ErrMissingGatewayKey):
		return "Online payment is not available. Please choose cash on delivery."

	case errors.As(err, &failed):
		if failed.Reason == "" {
			return "Payment failed. Please try again."
		}
		return "Payment failed: " + failed.Reason

	case errors.Is(err, ErrPaymentCancelled):
		return "Payment was cancelled."

	case errors.As(err, &unver):
		return "We could not verify your payment. If money was deducted, contact support with payment ID " + unver.PaymentID + "."

	case errors.Is(err, ErrCODOrder):
		var bm backendMessager
		if errors.As(err, &bm) && bm.BackendMessage() != "" {
			return "Could not place your order: " + bm.BackendMessage()
		}
		return "Could not place your cash on delivery order. Please try again."
	}

	return "Something went wrong. Please try again."
}
