package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/freshfoldapp/freshfold/internal/auth"
	"github.com/freshfoldapp/freshfold/internal/observability"
)

type claimsContextKey struct{}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims
}

// RequireRole verifies the bearer token and rejects requests whose role
// does not match. Verified claims are placed in the request context.
func (h *Handlers) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meter := observability.MeterFromContext(r.Context())

			token, ok := bearerToken(r)
			if !ok {
				meter.Count("auth.rejected", 1, sentry.WithAttributes(
					attribute.String("reason", "missing_token"),
				))
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := h.verifier.Verify(token)
			if err != nil {
				meter.Count("auth.rejected", 1, sentry.WithAttributes(
					attribute.String("reason", "invalid_token"),
				))
				h.loggerFromContext(r.Context()).Warn("rejected invalid token", "error", err)
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if claims.Role != role {
				meter.Count("auth.rejected", 1, sentry.WithAttributes(
					attribute.String("reason", "wrong_role"),
				))
				writeErrorCode(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
