package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced with "[REDACTED]" in addition to
	// Authorization, Cookie and Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
}

var (
	// UUIDs go first so the phone pattern never sees their digit groups.
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	jwtRE   = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+(?:@|%40)[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\+?\b(?:\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redact scrubs tokens, email addresses, phone numbers and UUIDs from s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = jwtRE.ReplaceAllString(s, "[REDACTED:token]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger is Logger with PII scrubbing: request headers and the
// query string are logged only after Redact, sensitive headers are masked
// entirely and bodies are never logged. The contact form carries names,
// emails and phone numbers, so this is the logger the router installs.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		l := attachLogger(c, log.With().
			Str("remote_ip", c.ClientIP()).
			Str("query", truncate(Redact(c.Request.URL.RawQuery), maxQueryLogLength)))

		c.Next()

		ev := l.With().
			Bool("authenticated", IdentityFrom(c).Subject != "").
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Logger()
		emit(&ev, c)
	}
}
