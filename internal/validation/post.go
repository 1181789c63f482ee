package validation

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/templui/campus/internal/model"
)

const (
	PostTitleMaxLength   = 200
	PostContentMaxLength = 10000
)

func ValidatePostTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(trimmed) > PostTitleMaxLength {
		return errors.New("title is too long (max 200 characters)")
	}
	return nil
}

func ValidatePostContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("content is required")
	}
	if utf8.RuneCountInString(trimmed) > PostContentMaxLength {
		return errors.New("content is too long (max 10000 characters)")
	}
	return nil
}

func ValidatePostType(typ string) error {
	if !model.IsPostType(typ) {
		return errors.New("type must be one of announcement, event, discussion, help")
	}
	return nil
}
