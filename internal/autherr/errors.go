// Package autherr defines the sentinel errors shared across the auth core.
// Transport layers map these to status codes; services return them directly.
package autherr

import "errors"

var (
	// ErrInvalidCredentials is returned when the presented credential material
	// does not match a known user. Deliberately indistinguishable between
	// unknown user and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMFARequired signals that the password check passed but a one-time
	// code must be presented before a session is created.
	ErrMFARequired = errors.New("mfa required")

	// ErrMFAInvalid is returned for a wrong or replayed one-time code.
	ErrMFAInvalid = errors.New("invalid mfa code")

	// ErrRateLimited is returned when an attempt counter is exhausted, or when
	// the counting store is unreachable (lockout fails closed).
	ErrRateLimited = errors.New("rate limited")

	// ErrExpired is returned when a token or session lapsed naturally.
	ErrExpired = errors.New("expired")

	// ErrReuseDetected is returned when an already-rotated refresh token is
	// presented again. The whole token family is revoked as a side effect and
	// a security event is emitted; callers must force re-authentication.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrPermissionDenied is the ordinary negative authorization outcome.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrKeyUnavailable is returned when the signing-key or master-key
	// boundary is down. Never degraded to a less-secure mode.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrDependencyUnavailable is returned when the resource-attribute lookup
	// or the event feed cannot be reached. Authorization fails closed.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
