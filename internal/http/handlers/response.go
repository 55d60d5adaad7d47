// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers shared by every endpoint. Errors use
// one envelope with a stable code; success bodies are written as-is.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "user_not_found",
//	  "message": "user not found"
//	}
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/genai-studio/internal/http/middleware"
	"github.com/tbourn/genai-studio/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"bad_request"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"messages are required"`
}

// fail aborts the request with the error envelope. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFromErr maps a service error to status, code and message. Collaborator
// and unexpected errors are logged in full but answered with a generic
// message.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	case errors.Is(err, services.ErrBadRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, reason(err, services.ErrBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeUserNotFound, "user not found")
	case errors.Is(err, services.ErrSubscriptionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSubscriptionNotFound, "no subscription for this user")
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeOrderNotFound, "order not found")
	case errors.Is(err, services.ErrCapabilityFailed):
		middleware.LoggerFrom(c).Error().Err(err).Msg("capability failed")
		fail(c, http.StatusInternalServerError, ErrCodeCapabilityFailed, "upstream service failed")
	case errors.Is(err, services.ErrContactFailed):
		middleware.LoggerFrom(c).Error().Err(err).Msg("contact failed")
		fail(c, http.StatusInternalServerError, ErrCodeContactFailed, "message could not be sent")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// reason strips the sentinel prefix from a wrapped error message:
// "bad request: messages are required" -> "messages are required".
func reason(err, sentinel error) string {
	msg := err.Error()
	if r, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return r
	}
	return msg
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
