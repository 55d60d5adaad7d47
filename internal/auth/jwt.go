// Package auth verifies session tokens issued by the identity provider and
// exposes the caller's subject id. Tokens are HS256 JWTs carried either in an
// "Authorization: Bearer" header or in the session cookie.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when the request carries no session token.
	ErrNoToken = errors.New("no session token")
	// ErrInvalidToken is returned for tokens that fail signature, expiry,
	// issuer or subject checks.
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims is the session payload. Subject carries the identity-provider id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Identity is the authenticated caller as seen by the rest of the service.
type Identity struct {
	Subject string
	Email   string
}

// Verifier validates session tokens.
type Verifier struct {
	secret     []byte
	issuer     string
	cookieName string
	now        func() time.Time
}

// NewVerifier returns a Verifier for HS256 tokens signed with secret. When
// issuer is non-empty the iss claim must match it.
func NewVerifier(secret, issuer, cookieName string) *Verifier {
	return &Verifier{
		secret:     []byte(secret),
		issuer:     issuer,
		cookieName: cookieName,
		now:        time.Now,
	}
}

// Authenticate resolves the caller of r. ok is false when no valid token is
// present.
func (v *Verifier) Authenticate(r *http.Request) (Identity, bool) {
	raw := v.tokenFrom(r)
	if raw == "" {
		return Identity{}, false
	}
	id, err := v.Verify(raw)
	if err != nil {
		return Identity{}, false
	}
	return id, true
}

// Verify parses and validates a raw token string.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, ErrNoToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// IssueToken signs a session token for subject valid for ttl.
func (v *Verifier) IssueToken(subject, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if v.cookieName != "" {
		if c, err := r.Cookie(v.cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}
