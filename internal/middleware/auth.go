package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/foodguardian/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithUser returns a copy of ctx carrying the given identity.
func WithUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, EmailKey, email)
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// adds the user ID and email of valid ones to the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				ErrorResponse(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				slog.Debug("rejected token", "path", r.URL.Path, "error", err)
				ErrorResponse(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Email)))
		})
	}
}

// OptionalAuth adds the identity of a valid bearer token to the context but
// lets every request through.
func OptionalAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, err := bearerToken(r); err == nil {
				if claims, err := jwtManager.Validate(token); err == nil {
					r = r.WithContext(WithUser(r.Context(), claims.UserID, claims.Email))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
