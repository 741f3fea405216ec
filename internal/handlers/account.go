package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/handlers/middleware"
	"github.com/nkiryanov/todoserver/internal/handlers/render"
	"github.com/nkiryanov/todoserver/internal/handlers/userctx"
	"github.com/nkiryanov/todoserver/internal/logger"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/service/account"
)

type accountService interface {
	Register(ctx context.Context, email string, password string, passwordConfirm string) (models.User, error)
	LoginOpaque(ctx context.Context, email string, password string) (account.OpaqueLogin, error)
	LoginClaims(ctx context.Context, email string, password string) (account.ClaimsLogin, error)
	Logout(ctx context.Context, user models.User) error
	ChangePassword(ctx context.Context, user models.User, oldPassword string, newPassword string, newPasswordConfirm string) error
	VerifyEmail(ctx context.Context, token string) (models.User, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token string, newPassword string, newPasswordConfirm string) error
	RefreshAccess(refresh string) (models.IssuedToken, error)
	VerifyToken(token string) error
}

type authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (models.User, error)
}

type AccountHandler struct {
	accounts accountService
	auth     authenticator
	logger   logger.Logger
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewAccount(accounts accountService, auth authenticator, l logger.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, auth: auth, logger: l}
}

func (h *AccountHandler) Handler() http.Handler {
	anonymous := middleware.AnonymousMiddleware(h.auth)
	authenticated := middleware.AuthMiddleware(h.auth)

	mux := http.NewServeMux()
	mux.Handle("POST /registration/{$}", anonymous(http.HandlerFunc(h.register)))
	mux.Handle("PUT /registration/change-password/{$}", authenticated(http.HandlerFunc(h.changePassword)))

	mux.Handle("POST /token/login/{$}", anonymous(http.HandlerFunc(h.loginOpaque)))
	mux.Handle("POST /token/logout/{$}", authenticated(http.HandlerFunc(h.logout)))

	mux.HandleFunc("GET /verification/confirm/{token}/{$}", h.verifyEmail)
	mux.HandleFunc("POST /verification/resend/{$}", h.resendVerification)

	mux.HandleFunc("POST /password-reset/send/{$}", h.requestPasswordReset)
	mux.HandleFunc("PUT /password-reset/done/{token}/{$}", h.completePasswordReset)

	mux.HandleFunc("POST /jwt/create/{$}", h.loginClaims)
	mux.HandleFunc("POST /jwt/refresh/{$}", h.refresh)
	mux.HandleFunc("POST /jwt/verify/{$}", h.verify)

	return mux
}

func (h *AccountHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email           string `json:"email" validate:"required,email,max=255"`
		Password        string `json:"password" validate:"required,max=128"`
		PasswordConfirm string `json:"password_confirm" validate:"required,max=128"`
	}
	type RegisterResponse struct {
		Email string `json:"email"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.accounts.Register(r.Context(), data.Email, data.Password, data.PasswordConfirm)
	switch {
	case err == nil:
		render.JSONWithStatus(w, RegisterResponse{Email: user.Email}, http.StatusCreated)
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		render.FieldErrors(w, map[string]string{"email": "User with this email already exists"})
	case h.passwordError(w, err, "password", "password_confirm"):
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) loginOpaque(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required,max=128"`
	}
	type LoginResponse struct {
		Token  string    `json:"token"`
		UserID uuid.UUID `json:"user_id"`
		Email  string    `json:"email"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	login, err := h.accounts.LoginOpaque(r.Context(), data.Email, data.Password)
	switch {
	case err == nil:
		render.JSON(w, LoginResponse{Token: login.Token.Key, UserID: login.User.ID, Email: login.User.Email})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Unable to log in with provided credentials", http.StatusBadRequest)
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		h.internalError(w, errors.New("no user in authenticated request"))
		return
	}

	if err := h.accounts.Logout(r.Context(), user); err != nil {
		h.internalError(w, err)
		return
	}

	render.NoContent(w)
}

func (h *AccountHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	type ChangePasswordRequest struct {
		OldPassword        string `json:"old_password" validate:"required,max=128"`
		NewPassword        string `json:"new_password" validate:"required,max=128"`
		NewPasswordConfirm string `json:"new_password_confirm" validate:"required,max=128"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		h.internalError(w, errors.New("no user in authenticated request"))
		return
	}

	// Unverified user is rejected whatever the request body is
	if !user.IsVerified {
		render.ServiceError(w, "User is not verified", http.StatusForbidden)
		return
	}

	data, err := render.BindAndValidate[ChangePasswordRequest](w, r)
	if err != nil {
		return
	}

	err = h.accounts.ChangePassword(r.Context(), user, data.OldPassword, data.NewPassword, data.NewPasswordConfirm)
	switch {
	case err == nil:
		render.NoContent(w)
	case errors.Is(err, apperrors.ErrUserNotVerified):
		render.ServiceError(w, "User is not verified", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrWrongPassword):
		render.FieldErrors(w, map[string]string{"old_password": "Wrong password"})
	case h.passwordError(w, err, "new_password", "new_password_confirm"):
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	_, err := h.accounts.VerifyEmail(r.Context(), r.PathValue("token"))
	switch {
	case err == nil:
		render.JSON(w, messageResponse{Message: "Your account has been verified successfully"})
	case h.tokenError(w, err):
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) resendVerification(w http.ResponseWriter, r *http.Request) {
	type ResendRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ResendRequest](w, r)
	if err != nil {
		return
	}

	err = h.accounts.ResendVerification(r.Context(), data.Email)
	switch {
	case err == nil:
		render.JSON(w, messageResponse{Message: "Verification email has been sent"})
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.FieldErrors(w, map[string]string{"email": "User with this email does not exist"})
	case errors.Is(err, apperrors.ErrUserAlreadyVerified):
		render.ServiceError(w, "User is already verified", http.StatusBadRequest)
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	type ResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ResetRequest](w, r)
	if err != nil {
		return
	}

	err = h.accounts.RequestPasswordReset(r.Context(), data.Email)
	switch {
	case err == nil:
		render.JSON(w, messageResponse{Message: "Password reset email has been sent"})
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.FieldErrors(w, map[string]string{"email": "User with this email does not exist"})
	case errors.Is(err, apperrors.ErrUserNotVerified):
		render.ServiceError(w, "User is not verified", http.StatusUnauthorized)
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) completePasswordReset(w http.ResponseWriter, r *http.Request) {
	type CompleteResetRequest struct {
		NewPassword        string `json:"new_password" validate:"required,max=128"`
		NewPasswordConfirm string `json:"new_password_confirm" validate:"required,max=128"`
	}

	data, err := render.BindAndValidate[CompleteResetRequest](w, r)
	if err != nil {
		return
	}

	err = h.accounts.CompletePasswordReset(r.Context(), r.PathValue("token"), data.NewPassword, data.NewPasswordConfirm)
	switch {
	case err == nil:
		render.JSON(w, messageResponse{Message: "Your password has been reset successfully"})
	case h.tokenError(w, err):
	case h.passwordError(w, err, "new_password", "new_password_confirm"):
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) loginClaims(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required,max=128"`
	}
	type LoginResponse struct {
		Access  string    `json:"access"`
		Refresh string    `json:"refresh"`
		Email   string    `json:"email"`
		UserID  uuid.UUID `json:"user_id"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	login, err := h.accounts.LoginClaims(r.Context(), data.Email, data.Password)
	switch {
	case err == nil:
		render.JSON(w, LoginResponse{
			Access:  login.Pair.Access.Value,
			Refresh: login.Pair.Refresh.Value,
			Email:   login.User.Email,
			UserID:  login.User.ID,
		})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "No active account found with the given credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrUserNotVerified):
		render.ServiceError(w, "User is not verified", http.StatusBadRequest)
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}
	type RefreshResponse struct {
		Access string `json:"access"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	access, err := h.accounts.RefreshAccess(data.Refresh)
	switch {
	case err == nil:
		render.JSON(w, RefreshResponse{Access: access.Value})
	case errors.Is(err, apperrors.ErrTokenExpired), errors.Is(err, apperrors.ErrTokenInvalid):
		render.ServiceError(w, "Token is invalid or expired", http.StatusUnauthorized)
	default:
		h.internalError(w, err)
	}
}

func (h *AccountHandler) verify(w http.ResponseWriter, r *http.Request) {
	type VerifyRequest struct {
		Token string `json:"token" validate:"required"`
	}

	data, err := render.BindAndValidate[VerifyRequest](w, r)
	if err != nil {
		return
	}

	err = h.accounts.VerifyToken(data.Token)
	switch {
	case err == nil:
		render.JSON(w, struct{}{})
	case errors.Is(err, apperrors.ErrTokenExpired), errors.Is(err, apperrors.ErrTokenInvalid):
		render.ServiceError(w, "Token is invalid or expired", http.StatusUnauthorized)
	default:
		h.internalError(w, err)
	}
}

// Render errors of emailed tokens. Returns false if error is not about token
func (h *AccountHandler) tokenError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		render.ServiceError(w, "Token has expired", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrTokenUsed):
		render.ServiceError(w, "Token has been used already", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrTokenInvalid):
		render.ServiceError(w, "Token is invalid", http.StatusBadRequest)
	default:
		return false
	}
	return true
}

// Render new password errors for the given request fields. Returns false if error is not about password
func (h *AccountHandler) passwordError(w http.ResponseWriter, err error, passwordField string, confirmField string) bool {
	var policyErr *apperrors.PasswordPolicyError
	switch {
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		render.FieldErrors(w, map[string]string{confirmField: "Passwords did not match"})
	case errors.As(err, &policyErr):
		render.FieldErrors(w, map[string]string{passwordField: strings.Join(policyErr.Reasons, " ")})
	case errors.Is(err, apperrors.ErrPasswordTooWeak):
		render.FieldErrors(w, map[string]string{passwordField: "This password is too weak"})
	default:
		return false
	}
	return true
}

func (h *AccountHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("error while handling account request", "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}
