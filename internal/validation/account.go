package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateEmail accepts a bare RFC 5322 address of at most 254 characters.
// Display-name forms such as "Ada <ada@x.com>" are rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email address format")
	}
	return nil
}

// ValidateName checks a display name: required, at most 100 characters,
// no control characters.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(trimmed) > 100 {
		return errors.New("name is too long (max 100 characters)")
	}
	if strings.ContainsFunc(trimmed, unicode.IsControl) {
		return errors.New("name contains invalid characters")
	}
	return nil
}
