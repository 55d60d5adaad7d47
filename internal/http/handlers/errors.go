// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them, while the message is for humans.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "subscription_not_found",
//	  "message": "no subscription for this user"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeUserNotFound         = "user_not_found"
	ErrCodeSubscriptionNotFound = "subscription_not_found"
	ErrCodeOrderNotFound        = "order_not_found"
	ErrCodeCapabilityFailed     = "capability_failed"
	ErrCodeContactFailed        = "contact_failed"
)
