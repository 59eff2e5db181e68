// Package middleware carries the transport middleware: party authentication
// from bearer tokens.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gridconsent/internal/party"
	"gridconsent/internal/transport/http/shared"
	domainerrors "gridconsent/pkg/domain-errors"
)

type contextKeyParty struct{}

// PartyFromContext returns the authenticated party id, if any.
func PartyFromContext(ctx context.Context) (party.ID, bool) {
	id, ok := ctx.Value(contextKeyParty{}).(party.ID)
	return id, ok
}

// withParty stores the authenticated party id. Exported only to tests through
// WithParty.
func withParty(ctx context.Context, id party.ID) context.Context {
	return context.WithValue(ctx, contextKeyParty{}, id)
}

// WithParty injects a party id into the context. For handler tests.
func WithParty(ctx context.Context, id party.ID) context.Context {
	return withParty(ctx, id)
}

// partyClaims is the token shape issued by the identity provider: the subject
// is the internal party id.
type partyClaims struct {
	jwt.RegisteredClaims
}

// RequirePartyAuth validates the bearer token and stores the party id in the
// request context.
func RequirePartyAuth(signingKey []byte, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				shared.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"code":    "UNAUTHENTICATED",
					"message": "missing bearer token",
				})
				return
			}

			var claims partyClaims
			parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
				}
				return signingKey, nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
			if err != nil || !parsed.Valid || claims.Subject == "" {
				log.WarnContext(ctx, "rejected bearer token", slog.Any("error", err))
				shared.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"code":    "UNAUTHENTICATED",
					"message": "invalid or expired token",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(withParty(ctx, party.ID(claims.Subject))))
		})
	}
}

// MustParty reads the authenticated party or reports the configuration error.
func MustParty(ctx context.Context) (party.ID, error) {
	id, ok := PartyFromContext(ctx)
	if !ok || id == "" {
		return "", domainerrors.New(domainerrors.CodeInternal, "authentication context missing")
	}
	return id, nil
}

// IssueToken mints a token for the given party. Used by tooling and tests;
// production tokens come from the identity provider.
func IssueToken(signingKey []byte, id party.ID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := partyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}
