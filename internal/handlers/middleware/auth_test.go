package middleware

import (
	"context"
	"errors"
	"testing"

	"io"
	"net/http"
	"net/http/httptest"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/handlers/userctx"
	"github.com/nkiryanov/todoserver/internal/models"
)

// Allow to use a function as authenticator
type authFunc func(ctx context.Context, r *http.Request) (models.User, error)

func (f authFunc) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	return f(ctx, r)
}

func authAs(user models.User, err error) authFunc {
	return func(ctx context.Context, r *http.Request) (models.User, error) {
		return user, err
	}
}

func get(t *testing.T, h http.Handler) (int, string) {
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/test")
	require.NoError(t, err, "should make request to test server")
	defer resp.Body.Close() // nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")

	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	// Simple handler that try to get user from context
	// If ok write it email to response
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set user to context or write error to response
		user, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(user.Email))
		require.NoError(t, err, "should write email to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{Email: "john@example.com"}, nil))

		code, body := get(t, mw(handler))

		require.Equalf(t, http.StatusOK, code, "should return status OK. Resp: %s", body)
		require.Equal(t, "john@example.com", body, "should return email in response")
	})

	t.Run("no credentials", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{}, apperrors.ErrNotAuthenticated))

		code, body := get(t, mw(handler))

		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Authentication credentials were not provided"}`, body)
	})

	t.Run("bad credentials", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{}, apperrors.ErrInvalidCredentials))

		code, body := get(t, mw(handler))

		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Invalid token"}`, body)
	})

	t.Run("unexpected error", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{}, errors.New("db is down")))

		code, _ := get(t, mw(handler))

		require.Equal(t, http.StatusInternalServerError, code)
	})
}

func TestAnonymousMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("anonymous passes", func(t *testing.T) {
		mw := AnonymousMiddleware(authAs(models.User{}, apperrors.ErrNotAuthenticated))

		code, _ := get(t, mw(handler))

		require.Equal(t, http.StatusTeapot, code)
	})

	t.Run("authenticated rejected", func(t *testing.T) {
		mw := AnonymousMiddleware(authAs(models.User{Email: "john@example.com"}, nil))

		code, body := get(t, mw(handler))

		require.Equal(t, http.StatusForbidden, code)
		require.JSONEq(t, `{"error": "service_error", "message": "You are already authenticated"}`, body)
	})

	t.Run("bad credentials rejected", func(t *testing.T) {
		mw := AnonymousMiddleware(authAs(models.User{}, apperrors.ErrInvalidCredentials))

		code, _ := get(t, mw(handler))

		require.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestVerifiedMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("verified passes", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{IsVerified: true}, nil))

		code, _ := get(t, mw(VerifiedMiddleware(handler)))

		require.Equal(t, http.StatusTeapot, code)
	})

	t.Run("not verified rejected", func(t *testing.T) {
		mw := AuthMiddleware(authAs(models.User{IsVerified: false}, nil))

		code, body := get(t, mw(VerifiedMiddleware(handler)))

		require.Equal(t, http.StatusForbidden, code)
		require.JSONEq(t, `{"error": "service_error", "message": "User is not verified"}`, body)
	})

	t.Run("no user in context", func(t *testing.T) {
		code, _ := get(t, VerifiedMiddleware(handler))

		require.Equal(t, http.StatusUnauthorized, code)
	})
}
