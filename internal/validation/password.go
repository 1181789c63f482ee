package validation

import (
	"errors"
	"strings"
)

const (
	PasswordMinLength = 6
	// bcrypt silently truncates passwords longer than 72 bytes
	PasswordMaxLength = 72
)

// ValidatePassword validates password length and blocks a few trivial choices
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return errors.New("password must be at least 6 characters")
	}

	if len(password) > PasswordMaxLength {
		return errors.New("password must not exceed 72 characters")
	}

	lower := strings.ToLower(password)
	for _, common := range []string{"123456", "password", "qwerty"} {
		if lower == common {
			return errors.New("password is too common, please choose a stronger one")
		}
	}

	return nil
}

// ValidatePasswordConfirmation checks that both entries match
func ValidatePasswordConfirmation(password, confirmation string) error {
	if password != confirmation {
		return errors.New("passwords do not match")
	}
	return nil
}
