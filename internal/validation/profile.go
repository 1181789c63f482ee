package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/templui/campus/internal/model"
)

// ValidateRole accepts the two campus roles
func ValidateRole(role string) error {
	switch role {
	case model.RoleStudent, model.RoleLecturer:
		return nil
	case "":
		return errors.New("role is required")
	default:
		return errors.New("role must be student or lecturer")
	}
}

// ValidateOptionalText limits free-form profile fields
func ValidateOptionalText(field, value string, max int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > max {
		return errors.New(field + " is too long")
	}
	return nil
}

// ValidatePhone allows digits, spaces and the usual separators
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return errors.New("phone number contains invalid characters")
		}
	}
	if digits < 6 || digits > 15 {
		return errors.New("phone number must have 6 to 15 digits")
	}
	return nil
}
