package auth

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrMissingToken           = errors.New("missing token")
	ErrInvalidToken           = errors.New("invalid token")
	ErrInvalidTokenType       = errors.New("invalid token type")
	ErrTokenExpired           = errors.New("token expired")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("validation failed")
	ErrAccountNotFound        = errors.New("account not found")
	ErrPasswordReused         = errors.New("password reused")
	ErrInvalidOldPassword     = errors.New("invalid old password")
	ErrInvalidOrExpiredToken  = errors.New("invalid or expired reset token")
	ErrEmailTaken             = errors.New("email already exists")
	ErrStoreUnavailable       = errors.New("credential store unavailable")
	ErrNotificationFailed     = errors.New("notification failed")
)

// ValidationError carries a client-facing message and, for password policy
// failures, the list of rules that were not met.
type ValidationError struct {
	Message  string
	Failures []string
}

func NewValidationError(message string, failures ...string) *ValidationError {
	return &ValidationError{Message: message, Failures: failures}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ForbiddenError carries the client-facing reason for a denied action.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// StatusFor maps an error from this package to an HTTP status and the
// message returned to the client. Unknown errors map to 500 with a generic
// message.
func StatusFor(err error) (int, string) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Message
	}
	var forbiddenErr *ForbiddenError
	if errors.As(err, &forbiddenErr) {
		return http.StatusForbidden, forbiddenErr.Message
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized, "Valid Bearer token is required"
	case errors.Is(err, ErrInvalidTokenType):
		return http.StatusUnauthorized, "Invalid token type"
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired"
	case errors.Is(err, ErrInvalidToken):
		return http.StatusForbidden, "Invalid token"
	case errors.Is(err, ErrInvalidRefreshToken):
		return http.StatusForbidden, "Invalid refresh token"
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, ErrPasswordReused):
		return http.StatusBadRequest, "New password cannot be the same as old password"
	case errors.Is(err, ErrInvalidOldPassword):
		return http.StatusBadRequest, "Old password is incorrect"
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return http.StatusNotFound, "Invalid or expired token"
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict, "Email already exists"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	case errors.Is(err, ErrNotificationFailed):
		return http.StatusInternalServerError, "Failed to send reset password email"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
