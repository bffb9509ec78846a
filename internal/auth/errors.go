package auth

import (
	"errors"
	"strings"
)

// Closed taxonomy for provider failures. Anything the keyword matcher cannot
// classify becomes an UnknownError carrying the provider's own text.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrWeakPassword       = errors.New("weak password")
	ErrNetwork            = errors.New("auth network failure")
	ErrSessionExpired     = errors.New("session expired")
)

// UnknownError preserves provider error text the matcher didn't anticipate.
type UnknownError struct {
	Detail string
}

func (e *UnknownError) Error() string {
	return "auth provider: " + e.Detail
}

// Normalize maps the provider's free-text error to the taxonomy via
// case-insensitive keyword matching. Best-effort: messages the provider didn't
// anticipate may misclassify, which is why the rules run in a fixed priority
// order.
func Normalize(message string) error {
	m := strings.ToLower(message)

	switch {
	case strings.Contains(m, "invalid") || strings.Contains(m, "credentials"):
		return ErrInvalidCredentials
	case strings.Contains(m, "not found") || strings.Contains(m, "user"):
		return ErrUserNotFound
	case strings.Contains(m, "already") || strings.Contains(m, "exists"):
		return ErrEmailAlreadyInUse
	case strings.Contains(m, "password") && strings.Contains(m, "weak"):
		return ErrWeakPassword
	case strings.Contains(m, "network") || strings.Contains(m, "connection"):
		return ErrNetwork
	case strings.Contains(m, "expired") || strings.Contains(m, "session"):
		return ErrSessionExpired
	default:
		return &UnknownError{Detail: message}
	}
}

// UserMessage maps a taxonomy error to the string shown to the user.
func UserMessage(err error) string {
	var unknown *UnknownError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrUserNotFound):
		return "No account found with this email"
	case errors.Is(err, ErrEmailAlreadyInUse):
		return "An account with this email already exists"
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters"
	case errors.Is(err, ErrNetwork):
		return "Network error. Please check your connection"
	case errors.Is(err, ErrSessionExpired):
		return "Your session has expired. Please log in again"
	case errors.As(err, &unknown):
		return unknown.Detail
	default:
		return err.Error()
	}
}
