package domain

import (
	"errors"
	"fmt"
)

var (
	// Address could not be resolved. Not retried; the caller fixes the address.
	ErrGeocodeNotFound = errors.New("geocode not found")
	// Transient network or provider failure. Eligible for a single retry.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// Malformed caller input. Indicates a bug in the caller, never retried.
	ErrInvalidInput = errors.New("invalid input")
	// Record lookup by id matched nothing.
	ErrNotFound = errors.New("not found")
)

// GeocodeError reports a failed address lookup.
// Err is ErrGeocodeNotFound or ErrProviderUnavailable.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// ProviderError reports a failed routing or geocoding provider call.
type ProviderError struct {
	Op     string
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
