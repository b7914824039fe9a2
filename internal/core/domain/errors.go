// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import "errors"

// =============================================================================
// Error Kinds
// =============================================================================

// These sentinels classify every failure the deployment core can report.
// Packages wrap them in typed errors that carry the file, value or resource
// involved; callers test the class with errors.Is.
var (
	// ErrInvalidFormat is returned when a port declaration is malformed.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidConfig is returned when remote state has a structure the
	// reconciler cannot operate on.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrQuotaExceeded is returned when the rule priority ceiling is reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRemoteState is returned when listing or applying remote state fails.
	ErrRemoteState = errors.New("remote state error")

	// ErrCancelled is returned when an in-flight wait was interrupted.
	ErrCancelled = errors.New("operation cancelled")
)
