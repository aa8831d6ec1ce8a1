package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrMalformedResponse marks a reply that arrived but could not be parsed
// into content or reasoning.
var ErrMalformedResponse = errors.New("malformed response")

// AdapterError is a provider failure with its HTTP status, when there was one.
// Permanent marks failures that no retry can fix even without a status.
type AdapterError struct {
	Provider  string
	Status    int
	Temporary bool
	Permanent bool
	Err       error
}

func (e *AdapterError) Error() string {
	switch {
	case e == nil:
		return "adapter error"
	case e.Err != nil:
		return e.Err.Error()
	case e.Provider != "":
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	default:
		return fmt.Sprintf("adapter error (status=%d)", e.Status)
	}
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the status alone says a later attempt may work.
func (e *AdapterError) Retryable() bool {
	if e.Permanent {
		return false
	}
	return e.Temporary || e.Status == 429 || (e.Status >= 500 && e.Status <= 599)
}

// statusError builds an AdapterError for a non-2xx HTTP status.
func statusError(provider string, status int, detail string) error {
	return apiError(provider, status, errors.New(detail))
}

// apiError wraps an SDK or HTTP failure that carried a status code.
func apiError(provider string, status int, err error) error {
	e := &AdapterError{
		Provider: provider,
		Status:   status,
		Err:      fmt.Errorf("%s API returned status %d: %w", provider, status, err),
	}
	e.Temporary = e.Retryable()
	return e
}

func malformed(provider, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", provider, fmt.Sprintf(format, args...), ErrMalformedResponse)
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrMalformedResponse):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	return errors.As(err, &adapterErr) && adapterErr.Retryable()
}

// IsPermanent reports whether the provider rejected the request outright
// (bad key, unknown model, failed local command). Retrying the same backend
// cannot help.
func IsPermanent(err error) bool {
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) {
		return false
	}
	if adapterErr.Permanent {
		return true
	}
	return adapterErr.Status >= 400 && adapterErr.Status < 500 && adapterErr.Status != 429
}
