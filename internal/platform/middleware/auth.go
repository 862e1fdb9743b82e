package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"jagga/pkg/requestcontext"
)

// TokenValidator validates an official's bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims carries the verified identity of an official. Role and wallet
// come from the signed token, never from the request body, so the tier an
// endpoint acts at is bound to a verified signer rather than the caller's
// claimed role.
type TokenClaims struct {
	Wallet string
	Role   string
}

// Roles recognized by RequireRole.
const (
	RoleOfficer = "officer"
	RoleChief   = "chief"
)

// RequireRole rejects requests whose bearer token is missing, invalid, or
// carries a different role.
func RequireRole(validator TokenValidator, role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", GetRequestID(r.Context()),
				)
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if claims.Role != role {
				logger.WarnContext(r.Context(), "forbidden - role mismatch",
					"request_id", GetRequestID(r.Context()),
					"required_role", role,
					"token_role", claims.Role,
				)
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := requestcontext.WithActorWallet(r.Context(), claims.Wallet)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
