package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/masala-table/api/internal/platform/httpx"
)

// AccessTokenVerifier validates bearer tokens presented on requests.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (Identity, error)
}

// RequireAuth enforces a valid bearer token and, when roles are given,
// membership in one of them. The verified identity is stored on the request
// context.
func RequireAuth(verifier AccessTokenVerifier, roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "authentication unavailable", http.StatusInternalServerError))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "missing bearer token", http.StatusUnauthorized))
				return
			}

			identity, err := verifier.VerifyAccessToken(token)
			if err != nil {
				message := "invalid access token"
				if errors.Is(err, ErrExpiredToken) {
					message = "access token expired"
				}
				httpx.WriteError(ctx, w, httpx.NewError("unauthorized", message, http.StatusUnauthorized))
				return
			}

			if len(roles) > 0 && !roleAllowed(identity.Role, roles) {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func roleAllowed(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
