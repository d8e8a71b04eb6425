package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies operator requests before they reach admin handlers.
// Tokens are HS256 JWTs signed with a shared secret; the audience pins them
// to this service.
type Authenticator struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// Principal describes the authenticated operator.
type Principal struct {
	Subject string
}

type principalContextKey struct{}

// PrincipalFromContext extracts the authenticated principal from the request
// context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// NewAuthenticator constructs an authenticator from the shared secret.
func NewAuthenticator(secret, audience string) (*Authenticator, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, fmt.Errorf("server: auth secret required")
	}
	if strings.TrimSpace(audience) == "" {
		audience = "nftdropd"
	}
	return &Authenticator{secret: []byte(trimmed), audience: audience, now: time.Now}, nil
}

// Verify parses and validates a bearer token, returning the principal.
func (a *Authenticator) Verify(raw string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithAudience(a.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("server: verify token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("server: token invalid")
	}
	subject, _ := claims.GetSubject()
	return &Principal{Subject: subject}, nil
}

// Middleware enforces bearer authentication for admin endpoints.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		scheme, raw, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		principal, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
