// Package services holds the business logic behind the HTTP routes: the
// generic capability pipeline, user resolution, generation, contact-form,
// billing and retention use-cases. This file centralizes service-level error
// values so they can be returned consistently and mapped to HTTP status codes
// at the handler layer.
package services

import "errors"

// Pipeline errors. Validation failures wrap ErrBadRequest with the name of
// the violated field so callers can use errors.Is and still show a reason.
var (
	// ErrUnauthorized indicates that no caller identity was resolved.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest indicates a missing or malformed required field.
	ErrBadRequest = errors.New("bad request")

	// ErrCapabilityFailed wraps any failure of an external collaborator.
	ErrCapabilityFailed = errors.New("capability failed")
)

// Lookup errors.
var (
	// ErrUserNotFound indicates the caller has no user row yet.
	ErrUserNotFound = errors.New("user not found")

	// ErrSubscriptionNotFound indicates the user has no subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrOrderNotFound indicates an unknown payment order for this user.
	ErrOrderNotFound = errors.New("order not found")
)

// ErrContactFailed is returned when a contact message could neither be
// stored nor delivered.
var ErrContactFailed = errors.New("contact message could not be stored or delivered")
