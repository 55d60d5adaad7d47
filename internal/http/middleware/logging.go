// Package middleware contains the Gin middleware shared by every route:
// correlation ids, access logging, panic recovery, authentication,
// idempotency keys, rate limiting, metrics and security headers.
//
// Recommended order: RequestID, then Logger (or RedactingLogger), then
// Recovery, so panics and errors carry the correlation id. The
// request-scoped logger is stored under the "logger" Gin key and is also
// attached to the request context, so services can reach it through
// zerolog.Ctx.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds client-supplied correlation ids.
	maxRequestIDLength = 128
)

// RequestID reuses a client X-Request-ID (if short enough) or generates a
// UUIDv4, echoes it on the response and stores it in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits one structured access log per request. The level follows the
// outcome: error for 5xx or recorded Gin errors, warn for 4xx, info
// otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := attachLogger(c, log.With().
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength))

		c.Next()

		ev := l.With().
			Str("subject", IdentityFrom(c).Subject).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()
		emit(&ev, c)
	}
}

// attachLogger builds the request-scoped logger from base plus the common
// request fields and stores it in both the Gin and request contexts.
func attachLogger(c *gin.Context, base zerolog.Context) zerolog.Logger {
	rid, _ := c.Get(requestIDKey)
	l := base.
		Str("request_id", asString(rid)).
		Str("method", c.Request.Method).
		Str("path", routePath(c)).
		Logger()
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
	return l
}

func emit(l *zerolog.Logger, c *gin.Context) {
	status := c.Writer.Status()
	switch {
	case len(c.Errors) > 0:
		l.Error().Str("errors", c.Errors.String()).Msg("request")
	case status >= http.StatusInternalServerError:
		l.Error().Msg("request")
	case status >= http.StatusBadRequest:
		l.Warn().Msg("request")
	default:
		l.Info().Msg("request")
	}
}

// Recovery turns a panic into a JSON 500 with the standard error envelope
// and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
