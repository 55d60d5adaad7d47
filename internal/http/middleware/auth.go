package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/genai-studio/internal/auth"
)

// ctxKeyIdentity holds the auth.Identity resolved for the request.
const ctxKeyIdentity = "identity"

// Authenticator resolves the caller from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (auth.Identity, bool)
}

// AuthOptions configures Auth.
type AuthOptions struct {
	// PublicPaths bypass the session requirement. An entry ending in "/*"
	// matches every path under that prefix; others must match exactly.
	PublicPaths []string
}

// Auth resolves the caller once per request and stores the identity in the
// Gin context. Requests to non-public paths without a valid session are
// rejected with 401 before any handler runs. Public paths still get an
// identity attached when the caller happens to carry one.
func Auth(a Authenticator, opts AuthOptions) gin.HandlerFunc {
	pub := newPathSet(opts.PublicPaths)
	return func(c *gin.Context) {
		id, ok := a.Authenticate(c.Request)
		if ok {
			c.Set(ctxKeyIdentity, id)
		}
		if ok || c.Request.Method == http.MethodOptions || pub.match(c.Request.URL.Path) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "unauthorized",
			"message":    "authentication required",
		})
	}
}

// IdentityFrom returns the identity stored by Auth. The zero Identity means
// the caller is anonymous.
func IdentityFrom(c *gin.Context) auth.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{}
}

// SetIdentity stores id in the Gin context. Tests use it to bypass token
// verification.
func SetIdentity(c *gin.Context, id auth.Identity) { c.Set(ctxKeyIdentity, id) }

type pathSet struct {
	exact    map[string]struct{}
	prefixes []string
}

func newPathSet(paths []string) pathSet {
	ps := pathSet{exact: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "/*") {
			ps.prefixes = append(ps.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		ps.exact[strings.TrimSuffix(p, "/")] = struct{}{}
	}
	return ps
}

func (ps pathSet) match(path string) bool {
	if _, ok := ps.exact[strings.TrimSuffix(path, "/")]; ok {
		return true
	}
	for _, pre := range ps.prefixes {
		// "/swagger/*" also matches "/swagger"
		if strings.HasPrefix(path, pre) || path == strings.TrimSuffix(pre, "/") {
			return true
		}
	}
	return false
}
