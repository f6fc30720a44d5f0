// Package errors provides error handling for the harvester.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrServerStatus) {
//	    // retry
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection and combination
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	CombineErrors = crdb.CombineErrors
)

// Sentinel errors describing the closed set of harvest failure kinds.
// Retry eligibility is decided with errors.Is against these, never by
// inspecting dynamic error types.
var (
	// ErrServerStatus indicates the upstream service answered with a 5xx status
	ErrServerStatus = New("upstream server error")

	// ErrClientStatus indicates a 4xx answer; the request itself is wrong
	ErrClientStatus = New("upstream rejected request")

	// ErrConnection indicates a connection-level failure before any response
	ErrConnection = New("connection failure")

	// ErrTimeout indicates the request exceeded its deadline
	ErrTimeout = New("request timed out")

	// ErrDecode indicates a response body that could not be parsed
	ErrDecode = New("malformed response payload")

	// ErrCyclicAncestry indicates an ancestor chain that refers back to itself
	ErrCyclicAncestry = New("cyclic ancestry")

	// ErrNoPreferredLabel indicates an item without a usable preferred label
	ErrNoPreferredLabel = New("no preferred label")
)

// IsRetryable reports whether a fetch failure may be retried: server-side
// 5xx answers, connection failures and timeouts. Client errors and decode
// failures are final.
func IsRetryable(err error) bool {
	return err != nil && IsAny(err, ErrServerStatus, ErrConnection, ErrTimeout)
}

// IsClientError checks if an error is or wraps ErrClientStatus
func IsClientError(err error) bool {
	return err != nil && Is(err, ErrClientStatus)
}

// IsDecodeError checks if an error is or wraps ErrDecode
func IsDecodeError(err error) bool {
	return err != nil && Is(err, ErrDecode)
}
