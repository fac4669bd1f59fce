package services

import "errors"

// Sentinel errors the handler layer maps onto HTTP statuses.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionInvalid     = errors.New("invalid or expired session token")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrNotOwned           = errors.New("user is not managed by this admin")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrPasswordAlreadySet = errors.New("password has already been set")
	ErrUpstreamGeneration = errors.New("generation service is unavailable")
)

// ValidationError carries a caller-facing message for malformed input
// (bad email, weak password, negative limit).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validationf(message string) error {
	return &ValidationError{Message: message}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
