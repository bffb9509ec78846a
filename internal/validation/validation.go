package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrQueryEmpty is returned when a search query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooLong is returned when a search query exceeds the maximum length.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when a search query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrEmailInvalid is returned when an email fails the format check.
var ErrEmailInvalid = errors.New("invalid email address")

// ErrPasswordTooShort is returned when a password is below the minimum length.
var ErrPasswordTooShort = errors.New("password too short")

// MinPasswordLength is the provider's enforced minimum.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)

// ValidateQuery trims the input, enforces the length bound (maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space,
// comma, period, apostrophe, hyphen. Returns the trimmed string or an error
// suitable for 400 INVALID_QUERY responses. Normalization (e.g. lowercase)
// is left to the search layer.
func ValidateQuery(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// isAllowedQueryRune returns true for letters (Unicode), digits, space,
// comma, period, apostrophe, hyphen.
func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}

// ValidateEmail checks the address against a pragmatic format pattern.
// Returns the trimmed address.
func ValidateEmail(input string) (string, error) {
	s := strings.TrimSpace(input)
	if !emailPattern.MatchString(s) {
		return "", ErrEmailInvalid
	}
	return s, nil
}

// ValidatePassword enforces the minimum length. No trimming: whitespace in
// passwords is significant.
func ValidatePassword(input string) error {
	if len(input) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
