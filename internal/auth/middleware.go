package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/matemarket/matemarket/internal/domain"
)

// Authenticator resolves a bearer token; nil actor means unauthenticated.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Actor, error)
}

// Middleware requires a valid session and stores the actor on the request
// context.
func Middleware(authn Authenticator, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, logger)
				return
			}

			actor, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logger.Error("failed to authenticate request", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
				return
			}
			if actor == nil {
				unauthorized(w, logger)
				return
			}

			next(w, r.WithContext(WithActor(r.Context(), *actor)))
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(w http.ResponseWriter, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"}); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
