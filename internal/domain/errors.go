package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. ValidationRejected and RateLimited are terminal for a
// submission and must never be retried; UpstreamUnavailable means the cycle
// is skipped with previous output retained.
var (
	ErrValidationRejected  = errors.New("validation rejected")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Rejection wraps a terminal submission failure with a user-facing reason.
type Rejection struct {
	Reason string
	kind   error
}

func rejected(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...), kind: ErrValidationRejected}
}

// RateLimitRejection builds a Rejection distinguished as RateLimited so the
// caller can message the reporter differently.
func RateLimitRejection(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...), kind: ErrRateLimited}
}

func (r *Rejection) Error() string { return r.Reason }

// Unwrap lets errors.Is distinguish ErrValidationRejected from ErrRateLimited.
func (r *Rejection) Unwrap() error { return r.kind }

// IsTerminal reports whether err is a rejection that must not be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidationRejected) || errors.Is(err, ErrRateLimited)
}
