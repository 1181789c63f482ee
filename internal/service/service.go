package service

import (
	"strings"

	"github.com/templui/campus/internal/apperrors"
)

// invalid marks a local validation failure; its message is shown as is.
func invalid(err error) error {
	return apperrors.Wrap(err, apperrors.Validation, err.Error())
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
