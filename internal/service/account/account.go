package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/notify"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/service/auth"
	"github.com/nkiryanov/todoserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/todoserver/internal/service/validate"
)

// Paths the emailed links point to
const (
	VerifyEmailPath   = "/accounts/api/v1/verification/confirm/"
	ResetPasswordPath = "/accounts/api/v1/password-reset/done/"
)

type tokenManager interface {
	Issue(userID uuid.UUID, purpose tokenmanager.Purpose) (models.IssuedToken, error)
	GeneratePair(user models.User) (models.TokenPair, error)
	Refresh(refresh string) (models.IssuedToken, error)
	Parse(token string, allowed ...tokenmanager.Purpose) (*tokenmanager.Claims, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message)
}

type Config struct {
	// Absolute base of emailed links, like 'https://todo.example.com'
	BaseURL string

	// BcryptHasher is used if not set
	Hasher auth.PasswordHasher
}

type Service struct {
	baseURL string
	hasher  auth.PasswordHasher

	storage    repository.Storage
	tokens     tokenManager
	dispatcher dispatcher

	// Compared with password when user is not found, so response time doesn't reveal registered emails
	dummyHash string
}

type OpaqueLogin struct {
	Token models.AuthToken
	User  models.User
}

type ClaimsLogin struct {
	Pair models.TokenPair
	User models.User
}

func NewService(cfg Config, storage repository.Storage, tokens tokenManager, dispatcher dispatcher) (*Service, error) {
	if storage == nil || tokens == nil || dispatcher == nil {
		return nil, errors.New("storage, tokens and dispatcher must not be nil")
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("base url is not valid. Err: %w", err)
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	random, err := auth.GenerateKey()
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(random)
	if err != nil {
		return nil, fmt.Errorf("error while preparing dummy hash. Err: %w", err)
	}

	return &Service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hasher:     hasher,
		storage:    storage,
		tokens:     tokens,
		dispatcher: dispatcher,
		dummyHash:  dummyHash,
	}, nil
}

// Create unverified user and send verification email
func (s *Service) Register(ctx context.Context, email string, password string, passwordConfirm string) (models.User, error) {
	if err := s.checkNewPassword(password, passwordConfirm, email); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, hash)
	if err != nil {
		return models.User{}, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Exchange credentials to opaque bearer token
// Verification is not required to log in this way
func (s *Service) LoginOpaque(ctx context.Context, email string, password string) (OpaqueLogin, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return OpaqueLogin{}, err
	}

	key, err := auth.GenerateKey()
	if err != nil {
		return OpaqueLogin{}, err
	}

	token, err := s.storage.AuthToken().GetOrCreate(ctx, user.ID, key)
	if err != nil {
		return OpaqueLogin{}, fmt.Errorf("error while issuing auth token. Err: %w", err)
	}

	return OpaqueLogin{Token: token, User: user}, nil
}

// Exchange credentials to access and refresh tokens
// Only verified users are allowed
func (s *Service) LoginClaims(ctx context.Context, email string, password string) (ClaimsLogin, error) {
	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		return ClaimsLogin{}, err
	}

	if !user.IsVerified {
		return ClaimsLogin{}, apperrors.ErrUserNotVerified
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return ClaimsLogin{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return ClaimsLogin{Pair: pair, User: user}, nil
}

// Revoke the user opaque token
func (s *Service) Logout(ctx context.Context, user models.User) error {
	return s.storage.AuthToken().Delete(ctx, user.ID)
}

func (s *Service) ChangePassword(ctx context.Context, user models.User, oldPassword string, newPassword string, newPasswordConfirm string) error {
	if !user.IsVerified {
		return apperrors.ErrUserNotVerified
	}

	if err := s.checkNewPassword(newPassword, newPasswordConfirm, user.Email); err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.ErrWrongPassword
	}

	return s.setPassword(ctx, s.storage, user.ID, newPassword)
}

// Redeem verification token
// Redeeming it again while it's valid is ok
func (s *Service) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.Parse(token, tokenmanager.PurposeVerifyEmail)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.storage.User().SetVerified(ctx, claims.UserID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("%w: subject not found", apperrors.ErrTokenInvalid)
	}

	return user, err
}

func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.IsVerified {
		return apperrors.ErrUserAlreadyVerified
	}

	return s.sendVerification(ctx, user)
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !user.IsVerified {
		return apperrors.ErrUserNotVerified
	}

	token, err := s.tokens.Issue(user.ID, tokenmanager.PurposeResetPassword)
	if err != nil {
		return fmt.Errorf("token could not be generated. Err: %w", err)
	}

	s.dispatcher.Dispatch(ctx, notify.Message{
		Template: notify.TemplateResetPassword,
		To:       user.Email,
		Data:     notify.EmailData{Email: user.Email, Link: s.link(ResetPasswordPath, token.Value)},
	})

	return nil
}

// Set new password with reset token
// Token is single-use: it's marked used in the same transaction as password update
func (s *Service) CompletePasswordReset(ctx context.Context, token string, newPassword string, newPasswordConfirm string) error {
	claims, err := s.tokens.Parse(token, tokenmanager.PurposeResetPassword)
	if err != nil {
		return err
	}

	user, err := s.storage.User().GetUserByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return fmt.Errorf("%w: subject not found", apperrors.ErrTokenInvalid)
	case err != nil:
		return err
	}

	if err := s.checkNewPassword(newPassword, newPasswordConfirm, user.Email); err != nil {
		return err
	}

	return s.storage.InTx(ctx, func(storage repository.Storage) error {
		_, err := storage.UsedToken().MarkUsed(ctx, models.UsedToken{
			ID:        claims.TokenID(),
			Purpose:   string(claims.Purpose),
			ExpiresAt: claims.ExpiresAt.Time,
		})
		if err != nil {
			return err
		}

		return s.setPassword(ctx, storage, user.ID, newPassword)
	})
}

// Mint new access token
func (s *Service) RefreshAccess(refresh string) (models.IssuedToken, error) {
	return s.tokens.Refresh(refresh)
}

// Check access or refresh token is valid
func (s *Service) VerifyToken(token string) error {
	_, err := s.tokens.Parse(token, tokenmanager.PurposeAccess, tokenmanager.PurposeRefresh)
	return err
}

func (s *Service) checkCredentials(ctx context.Context, email string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

// Mismatch is reported before password strength
func (s *Service) checkNewPassword(password string, confirm string, email string) error {
	if password != confirm {
		return apperrors.ErrPasswordMismatch
	}
	return validate.Password(password, email)
}

func (s *Service) setPassword(ctx context.Context, storage repository.Storage, userID uuid.UUID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("can't use this as password. Err: %w", err)
	}

	_, err = storage.User().SetPassword(ctx, userID, hash)
	return err
}

func (s *Service) sendVerification(ctx context.Context, user models.User) error {
	token, err := s.tokens.Issue(user.ID, tokenmanager.PurposeVerifyEmail)
	if err != nil {
		return fmt.Errorf("token could not be generated. Err: %w", err)
	}

	s.dispatcher.Dispatch(ctx, notify.Message{
		Template: notify.TemplateVerifyEmail,
		To:       user.Email,
		Data:     notify.EmailData{Email: user.Email, Link: s.link(VerifyEmailPath, token.Value)},
	})

	return nil
}

func (s *Service) link(path string, token string) string {
	return s.baseURL + path + url.PathEscape(token) + "/"
}
