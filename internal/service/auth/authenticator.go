package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/service/auth/tokenmanager"
)

const (
	authHeaderName = "Authorization"

	OpaqueScheme = "Token"
	JWTScheme    = "Bearer"

	// Random bytes in opaque key, it's 40 hex chars
	authKeyBytes = 20
)

// Resolve the user making the request
// Must return apperrors.ErrNotAuthenticated if request has no credentials for the authenticator
// and apperrors.ErrInvalidCredentials if presented credentials are not valid
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

// Return credentials if Authorization header uses the scheme
func credentials(r *http.Request, scheme string) (string, bool) {
	header := r.Header.Get(authHeaderName)
	prefix, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(prefix, scheme) {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// Generate random key for opaque bearer credential
func GenerateKey() (string, error) {
	b := make([]byte, authKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating auth key. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Authenticate with 'Authorization: Token <key>'
type OpaqueAuthenticator struct {
	Tokens repository.AuthTokenRepo
}

func (a OpaqueAuthenticator) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	key, ok := credentials(r, OpaqueScheme)
	if !ok {
		return models.User{}, apperrors.ErrNotAuthenticated
	}

	user, err := a.Tokens.GetUser(ctx, key)
	switch {
	case errors.Is(err, apperrors.ErrAuthTokenNotFound):
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, fmt.Errorf("error while getting token user. Err: %w", err)
	case !user.IsActive:
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

type accessParser interface {
	Parse(token string, allowed ...tokenmanager.Purpose) (*tokenmanager.Claims, error)
}

// Authenticate with 'Authorization: Bearer <access token>'
type JWTAuthenticator struct {
	Tokens accessParser
	Users  repository.UserRepo
}

func (a JWTAuthenticator) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	access, ok := credentials(r, JWTScheme)
	if !ok {
		return models.User{}, apperrors.ErrNotAuthenticated
	}

	claims, err := a.Tokens.Parse(access, tokenmanager.PurposeAccess)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredentials, err)
	}

	user, err := a.Users.GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, fmt.Errorf("error while getting token user. Err: %w", err)
	case !user.IsActive:
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

// Try authenticators in order until one of them finds credentials
type ChainAuthenticator []Authenticator

func (c ChainAuthenticator) Authenticate(ctx context.Context, r *http.Request) (models.User, error) {
	for _, a := range c {
		user, err := a.Authenticate(ctx, r)
		if errors.Is(err, apperrors.ErrNotAuthenticated) {
			continue
		}
		return user, err
	}

	return models.User{}, apperrors.ErrNotAuthenticated
}
