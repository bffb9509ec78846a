package weather

import (
	"errors"
	"net/http"
)

// Closed error taxonomy for the weather provider. Callers branch with errors.Is;
// the UI layer renders UserMessage.
var (
	ErrInvalidURL       = errors.New("invalid request URL")
	ErrServer           = errors.New("weather provider failure")
	ErrDecoding         = errors.New("malformed weather response")
	ErrNetwork          = errors.New("network failure")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrRateLimited      = errors.New("rate limited")
)

// ErrorFromStatus maps a provider HTTP status to the taxonomy.
// Returns nil for 200.
func ErrorFromStatus(status int) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrServer
	}
}

// UserMessage maps a taxonomy error to the user-facing string shown by the
// mobile client. Unrecognized errors get the generic retry message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "Invalid request"
	case errors.Is(err, ErrServer):
		return "Server error. Please try again later."
	case errors.Is(err, ErrDecoding):
		return "Failed to process weather data"
	case errors.Is(err, ErrNetwork):
		return "No internet connection"
	case errors.Is(err, ErrInvalidAPIKey):
		return "API key is invalid. Please check configuration."
	case errors.Is(err, ErrLocationNotFound):
		return "Location not found"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests. Please try again later."
	default:
		return "Failed to fetch weather data. Please try again."
	}
}

// StatusLabel returns a stable metrics label for a provider response status.
func StatusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
