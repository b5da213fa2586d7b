package common

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable covers transport, auth, rate-limit and timeout
	// failures of any upstream data provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrConfiguration marks missing or invalid startup configuration.
	ErrConfiguration = errors.New("configuration error")
)

// ProviderError describes a failed provider call. It always matches
// ErrProviderUnavailable through errors.Is.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, ErrProviderUnavailable, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrProviderUnavailable, e.Err}
}

// Unavailable wraps err as a ProviderError.
func Unavailable(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
