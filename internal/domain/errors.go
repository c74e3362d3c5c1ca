/**
 * @description
 * This file defines the caller-facing error taxonomy for the access-service.
 * Orchestrators translate store and provider failures into these five kinds;
 * the API layer maps each kind onto an HTTP status without leaking internal
 * detail (stack traces, provider error bodies) to the client.
 */
package domain

import "errors"

var (
	// ErrUnauthorized covers a missing, invalid or expired session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken signals a duplicate signup email (Conflict).
	ErrEmailTaken = errors.New("email already registered")

	// ErrNotFound covers a missing league, a missing subscription, and a
	// subscription owned by a different user. Ownership violations are
	// reported as NotFound so callers cannot probe for foreign subscriptions.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState covers an inactive league and missing checkout
	// configuration.
	ErrInvalidState = errors.New("invalid state")

	// ErrExternalFailure covers a provider call error or a malformed/empty
	// provider response. The ledger is never mutated when this is returned.
	ErrExternalFailure = errors.New("payment provider failure")

	// ErrSubscriptionRequired is the access-gate denial: the token verified
	// but no active ledger row exists for the requested league.
	ErrSubscriptionRequired = errors.New("active subscription required")
)
