// Package auth checks session tokens on API routes that act for one user.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/models"
	"github.com/ai-learning-tracker/tracker/internal/session"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenParser is satisfied by *session.Signer.
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

type UserLookup interface {
	GetUserByGoogleID(googleID string) (*models.User, error)
}

func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// ClaimsFrom returns the claims stored by JWTAuthMiddleware, or nil.
func ClaimsFrom(ctx context.Context) *session.Claims {
	claims, _ := ctx.Value(claimsKey).(*session.Claims)
	return claims
}

// JWTAuthMiddleware rejects requests without a valid bearer token.
func JWTAuthMiddleware(parser TokenParser, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			claims, err := parser.Parse(token)
			if err != nil {
				logger.Debug("rejected session token", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// RequireSelf lets a request through only when the {param} path segment is
// the caller's own user id. Tokens issued before the user was synced carry no
// id, so the Google subject is looked up instead.
func RequireSelf(users UserLookup, param string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			target := chi.URLParam(r, param)

			callerID := claims.UserID
			if callerID == "" {
				user, err := users.GetUserByGoogleID(claims.Subject)
				if err != nil {
					logger.Error("failed to resolve token subject", zap.String("google_id", claims.Subject), zap.Error(err))
					writeError(w, http.StatusInternalServerError, "Failed to process user identity")
					return
				}
				if user != nil {
					callerID = user.ID
				}
			}
			if callerID == "" || callerID != target {
				writeError(w, http.StatusForbidden, "Not allowed to modify another user")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorBody{Kind: "unauthorized", Message: message})
}
