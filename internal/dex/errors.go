package dex

import (
	"errors"
	"fmt"
)

// Classification errors are expected for a fraction of live records and are
// skipped per-record. Invariant and convergence errors are fatal: they mean
// a computed trade would be rejected on-chain.

// NotAPoolError reports that a record's identity-token check failed.
type NotAPoolError struct {
	Protocol string
	Reason   string
}

func (e *NotAPoolError) Error() string {
	return fmt.Sprintf("%s: not a pool: %s", e.Protocol, e.Reason)
}

// InvalidLPError reports that a record's liquidity-token check failed.
type InvalidLPError struct {
	Protocol string
	Reason   string
}

func (e *InvalidLPError) Error() string {
	return fmt.Sprintf("%s: invalid liquidity token: %s", e.Protocol, e.Reason)
}

// SchemaMismatchError reports that a datum blob does not decode into any
// known variant for the protocol. Logged distinctly since it can indicate
// schema drift.
type SchemaMismatchError struct {
	Protocol string
	Err      error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: datum schema mismatch: %v", e.Protocol, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// MalformedAssetError reports that reserve normalization left an unexpected
// number of asset units.
type MalformedAssetError struct {
	Protocol string
	Reason   string
}

func (e *MalformedAssetError) Error() string {
	return fmt.Sprintf("%s: malformed assets: %s", e.Protocol, e.Reason)
}

// NoAssetsError reports a record with an empty or ADA-only balance where a
// pool pair was required.
type NoAssetsError struct {
	Protocol string
}

func (e *NoAssetsError) Error() string {
	return fmt.Sprintf("%s: no pool assets in record", e.Protocol)
}

// InvariantViolationError is fatal: a computed quote fails the protocol's
// settlement inequality even after clamping.
type InvariantViolationError struct {
	Protocol string
	Reason   string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: invariant violation: %s", e.Protocol, e.Reason)
}

// ConvergenceError is fatal: the stableswap iteration did not settle within
// its bound.
type ConvergenceError struct {
	Protocol   string
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: invariant iteration did not converge within %d rounds", e.Protocol, e.Iterations)
}

// Recoverable reports whether err is a per-record classification error that
// a batch caller should skip rather than abort on.
func Recoverable(err error) bool {
	var (
		notPool   *NotAPoolError
		invalidLP *InvalidLPError
		schema    *SchemaMismatchError
		malformed *MalformedAssetError
		noAssets  *NoAssetsError
	)
	switch {
	case errors.As(err, &notPool),
		errors.As(err, &invalidLP),
		errors.As(err, &schema),
		errors.As(err, &malformed),
		errors.As(err, &noAssets):
		return true
	}
	return false
}
