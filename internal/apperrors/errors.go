package apperrors

import (
	"errors"
	"strings"
)

var (
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserNotVerified     = errors.New("user is not verified")
	ErrUserAlreadyVerified = errors.New("user is already verified")

	ErrNotAuthenticated   = errors.New("authentication credentials were not provided")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrWrongPassword      = errors.New("wrong password")

	ErrPasswordMismatch = errors.New("passwords did not match")
	ErrPasswordTooWeak  = errors.New("password is too weak")

	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
	ErrTokenUsed    = errors.New("token is used")

	ErrAuthTokenNotFound = errors.New("auth token not found")

	ErrTaskNotFound = errors.New("task not found")
	ErrPageNotFound = errors.New("invalid page")
)

// PasswordPolicyError lists every password rule the candidate password broke.
// It matches ErrPasswordTooWeak with errors.Is
type PasswordPolicyError struct {
	Reasons []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrPasswordTooWeak.Error() + ": " + strings.Join(e.Reasons, " ")
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrPasswordTooWeak
}
