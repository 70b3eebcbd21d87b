// Package errs defines the fatal error kinds shared by every package in
// this module. Every kind is a distinct sentinel usable with errors.Is;
// Fatalf wraps a sentinel with formatted context the way gofem's
// chk.Err builds a message, but returns instead of panicking so callers
// decide fatality.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Compare with errors.Is, never with ==, since every
// wrapped error carries additional context via %w.
var (
	ConfigMismatch       = errors.New("config mismatch")
	InvalidInput         = errors.New("invalid input")
	FactorizationFailure = errors.New("factorization failure")
	StabilityViolation   = errors.New("stability violation")
	IoFailure            = errors.New("io failure")

	// FilterIllConditioned wraps FactorizationFailure for the Kalman
	// innovation-covariance Cholesky step specifically.
	FilterIllConditioned = fmt.Errorf("filter ill-conditioned: %w", FactorizationFailure)
)

// Fatalf builds an error of the given kind carrying formatted context.
func Fatalf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
