package tokenmanager

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
)

// Purpose restricts where the token is accepted
// Token issued for one purpose is never valid for another
type Purpose string

const (
	PurposeAccess        Purpose = "access"
	PurposeRefresh       Purpose = "refresh"
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

const (
	defaultSigningMethod    = "HS256"
	defaultAccessTTL        = 5 * time.Minute
	defaultRefreshTTL       = 24 * time.Hour
	defaultVerifyEmailTTL   = 24 * time.Hour
	defaultResetPasswordTTL = time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	UserID  uuid.UUID `json:"uid"`
	Purpose Purpose   `json:"purpose"`
}

// Token 'jti' as uuid, it's validated by Parse
func (c *Claims) TokenID() uuid.UUID {
	return uuid.MustParse(c.ID)
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetimes per purpose
	// If not set than default is used
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	VerifyEmailTTL   time.Duration
	ResetPasswordTTL time.Duration
}

type TokenManager struct {
	key  []byte
	alg  jwt.SigningMethod
	ttls map[Purpose]time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	// Only MAC algorithms could be used with shared secret
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	withDefault := func(value time.Duration, def time.Duration) time.Duration {
		if value == 0 {
			return def
		}
		return value
	}

	return &TokenManager{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttls: map[Purpose]time.Duration{
			PurposeAccess:        withDefault(cfg.AccessTTL, defaultAccessTTL),
			PurposeRefresh:       withDefault(cfg.RefreshTTL, defaultRefreshTTL),
			PurposeVerifyEmail:   withDefault(cfg.VerifyEmailTTL, defaultVerifyEmailTTL),
			PurposeResetPassword: withDefault(cfg.ResetPasswordTTL, defaultResetPasswordTTL),
		},
	}, nil
}

// Issue signed token for the user with lifetime configured for the purpose
func (m *TokenManager) Issue(userID uuid.UUID, purpose Purpose) (models.IssuedToken, error) {
	ttl, ok := m.ttls[purpose]
	if !ok {
		return models.IssuedToken{}, fmt.Errorf("unknown token purpose %q", purpose)
	}
	return m.IssueWithTTL(userID, purpose, ttl)
}

func (m *TokenManager) IssueWithTTL(userID uuid.UUID, purpose Purpose, ttl time.Duration) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(m.alg, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:  userID,
		Purpose: purpose,
	})

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", purpose, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

func (m *TokenManager) GeneratePair(user models.User) (models.TokenPair, error) {
	access, err := m.Issue(user.ID, PurposeAccess)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(user.ID, PurposeRefresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Mint new access token from valid refresh token
func (m *TokenManager) Refresh(refresh string) (models.IssuedToken, error) {
	claims, err := m.Parse(refresh, PurposeRefresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return m.Issue(claims.UserID, PurposeAccess)
}

// Parse and validate the token
// Return apperrors.ErrTokenExpired if token is expired, apperrors.ErrTokenInvalid for any other problem,
// including token issued for purpose not in the allowed list
func (m *TokenManager) Parse(token string, allowed ...Purpose) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	// Signature is checked before claims, so forged tokens never report expiration
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	case uuid.Validate(claims.ID) != nil:
		return nil, fmt.Errorf("%w: token id is malformed", apperrors.ErrTokenInvalid)
	case claims.UserID == uuid.Nil:
		return nil, fmt.Errorf("%w: subject is missing", apperrors.ErrTokenInvalid)
	case !slices.Contains(allowed, claims.Purpose):
		return nil, fmt.Errorf("%w: unexpected purpose %q", apperrors.ErrTokenInvalid, claims.Purpose)
	}

	return claims, nil
}
