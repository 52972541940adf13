// Package errs defines the machine-readable error taxonomy shared by the
// registry, ledger, and validator. Expected failures are returned as values
// wrapping these codes; only programmer errors (mutating a frozen entry,
// corrupt JSON, a missing required parameter) are allowed to panic.
package errs

import (
	"errors"
	"fmt"
)

// Code is a closed enumeration of the machine-readable reasons a governed
// operation can fail.
type Code string

const (
	MissingRequired        Code = "MISSING_REQUIRED"
	OriginConflict         Code = "ORIGIN_CONFLICT"
	IdentityNotFound       Code = "IDENTITY_NOT_FOUND"
	IdentityRevoked        Code = "IDENTITY_REVOKED"
	OriginMismatch         Code = "ORIGIN_MISMATCH"
	InvalidTimestamp       Code = "INVALID_TIMESTAMP"
	ReplayDetected         Code = "REPLAY_DETECTED"
	InvalidSignature       Code = "INVALID_SIGNATURE"
	HashMismatch           Code = "HASH_MISMATCH"
	ChainLinkBroken        Code = "CHAIN_LINK_BROKEN"
	GenesisPrevHashNotNull Code = "GENESIS_PREVHASH_NOT_NULL"
	ValidationFailed       Code = "VALIDATION_FAILED"
	SchemaVersionUnsupported Code = "SCHEMA_VERSION_UNSUPPORTED"
)

// Error is the structured error value returned for every expected failure.
// Message is the human-readable description required by spec.md §7; Detail
// carries an optional machine-usable payload (e.g. the offending index).
type Error struct {
	Code    Code
	Message string
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes a wrapped cause, if any, to errors.Is/errors.As callers.
func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error for the given code and human-readable message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of the error annotated with a detail string.
func (e *Error) WithDetail(detail string) *Error {
	clone := *e
	clone.Detail = detail
	return &clone
}

// Wrap returns a copy of the error chained to cause via Unwrap.
func (e *Error) Wrap(cause error) *Error {
	clone := *e
	clone.cause = cause
	return &clone
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Multi aggregates sub-check failures into a single ValidationFailed error,
// joining every reason with errors.Join so callers can still inspect the
// individual failures via errors.Is/errors.As on the returned error chain.
func Multi(reasons ...string) *Error {
	if len(reasons) == 0 {
		return nil
	}
	joined := make([]error, 0, len(reasons))
	for _, r := range reasons {
		joined = append(joined, errors.New(r))
	}
	return New(ValidationFailed, joinMessages(reasons)).Wrap(errors.Join(joined...))
}

func joinMessages(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
