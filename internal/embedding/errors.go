package embedding

import (
	"fmt"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding provider unavailable: %v", e.Err)
	}
	return "embedding provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrBadResponse indicates the provider answered with a vector count that
// does not match the request. It is not retried.
type ErrBadResponse struct {
	Want, Got int
}

func (e *ErrBadResponse) Error() string {
	return fmt.Sprintf("embedding response has %d vectors, want %d", e.Got, e.Want)
}
