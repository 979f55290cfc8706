package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"acytel/core/auth"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// AuthMiddleware validates the caller's bearer identity token and attaches
// the user ID to the request context. Identity minting belongs to the auth
// collaborator; this layer only consumes it.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(h.cfg.AuthTokenSecret, tokenString)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext returns the authenticated user ID set by
// AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok {
		return 0, errors.New("no authenticated user in context")
	}
	return userID, nil
}
