package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "0123456789abcdef0123"

func TestIssueAndAuthenticate_Bearer(t *testing.T) {
	v := NewVerifier(secret, "", "__session")
	tok, err := v.IssueToken("user_123", "u@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	id, ok := v.Authenticate(r)
	if !ok || id.Subject != "user_123" || id.Email != "u@example.com" {
		t.Fatalf("Authenticate = %+v, %v", id, ok)
	}
}

func TestAuthenticate_Cookie(t *testing.T) {
	v := NewVerifier(secret, "", "__session")
	tok, _ := v.IssueToken("user_c", "", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "__session", Value: tok})
	if id, ok := v.Authenticate(r); !ok || id.Subject != "user_c" {
		t.Fatalf("cookie auth failed: %+v %v", id, ok)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	v := NewVerifier(secret, "issuer-a", "__session")
	good, _ := v.IssueToken("s", "", time.Hour)
	expired, _ := v.IssueToken("s", "", -time.Minute)
	noSubject, _ := v.IssueToken("", "", time.Hour)
	wrongIssuer, _ := NewVerifier(secret, "issuer-b", "").IssueToken("s", "", time.Hour)
	wrongKey, _ := NewVerifier("another-secret-value!", "issuer-a", "").IssueToken("s", "", time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "s", Issuer: "issuer-a"},
	}).SignedString([]byte(secret))

	cases := map[string]string{
		"missing":      "",
		"basic scheme": "Basic " + good,
		"expired":      "Bearer " + expired,
		"no subject":   "Bearer " + noSubject,
		"wrong issuer": "Bearer " + wrongIssuer,
		"wrong key":    "Bearer " + wrongKey,
		"no exp":       "Bearer " + noExp,
		"garbage":      "Bearer not.a.jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				r.Header.Set("Authorization", header)
			}
			if id, ok := v.Authenticate(r); ok {
				t.Fatalf("expected rejection, got %+v", id)
			}
		})
	}
}

func TestVerify_Errors(t *testing.T) {
	v := NewVerifier(secret, "", "")
	if _, err := v.Verify(" "); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if _, err := v.Verify("x.y.z"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_UsesClock(t *testing.T) {
	v := NewVerifier(secret, "", "")
	tok, _ := v.IssueToken("s", "", time.Minute)
	v.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("token should be expired for a clock an hour ahead")
	}
}
