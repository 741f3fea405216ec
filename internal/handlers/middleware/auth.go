package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/handlers/render"
	"github.com/nkiryanov/todoserver/internal/handlers/userctx"
	"github.com/nkiryanov/todoserver/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

func renderAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotAuthenticated):
		render.ServiceError(w, "Authentication credentials were not provided", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid token", http.StatusUnauthorized)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// AuthMiddleware lets through authenticated requests only and puts the user to the request context
func AuthMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.Authenticate(r.Context(), r)
			if err != nil {
				renderAuthError(w, err)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AnonymousMiddleware rejects requests made with valid credentials
// Requests with bad credentials are rejected as unauthorized
func AnonymousMiddleware(a authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := a.Authenticate(r.Context(), r)
			switch {
			case err == nil:
				render.ServiceError(w, "You are already authenticated", http.StatusForbidden)
			case errors.Is(err, apperrors.ErrNotAuthenticated):
				next.ServeHTTP(w, r)
			default:
				renderAuthError(w, err)
			}
		})
	}
}

// VerifiedMiddleware has to wrap handler after AuthMiddleware
func VerifiedMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Authentication credentials were not provided", http.StatusUnauthorized)
			return
		}
		if !user.IsVerified {
			render.ServiceError(w, "User is not verified", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
