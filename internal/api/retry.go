package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// RetryPolicy says how often and on what a call is retried. Connection
// failures and RetryableStatuses are retried; timeouts, cancellations and
// every other status are not.
type RetryPolicy struct {
	MaxRetries        int
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	RetryableStatuses []int
}

var (
	NoRetry = RetryPolicy{}

	// OrderRetryPolicy covers payment order creation, verification and COD orders.
	OrderRetryPolicy = RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 300 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		RetryableStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
)

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return slices.Contains(p.RetryableStatuses, apiErr.StatusCode)
	}

	return errors.Is(err, ErrNoResponse)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxRetries <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)
}
