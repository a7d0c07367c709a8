// Package common defines shared constants and sentinel errors used across
// the client and server layers. Callers match these with errors.Is; the
// outbox and the sync orchestrator route recovery decisions off them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrValidation: payload failed schema checks. No local or remote state
	// changed; the message is surfaced to the caller verbatim.
	ErrValidation = errors.New("validation error")

	// ErrConflict: a server-side precondition failed (row already deleted,
	// duplicate address, limit reached). The optimistic local write is
	// reverted and the mutation is not retried.
	ErrConflict = errors.New("conflict")

	// ErrTransient: timeout or connection failure. The operation stays queued
	// and is retried with backoff; success must never be assumed.
	ErrTransient = errors.New("transient network error")

	// ErrStorage: the local cache write failed (quota, corruption). The
	// affected mutation stays in the outbox.
	ErrStorage = errors.New("storage error")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth / token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrRateLimited: the per-identity request budget was exhausted.
	ErrRateLimited = errors.New("rate limited")
)
