package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	sentinel := errors.New("post not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validationf("title is required"), Validation},
		{"wrapped not found", fmt.Errorf("update post: %w", NotFoundf("not found or not yours", sentinel)), NotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), Transient},
		{"plain", errors.New("boom"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsChain(t *testing.T) {
	sentinel := errors.New("file not found")
	err := Wrap(sentinel, NotFound, "File not found or not yours")

	assert.ErrorIs(t, err, sentinel)
	assert.Nil(t, Wrap(nil, Internal, "x"))
}

func TestUserMessageHidesInternalDetails(t *testing.T) {
	assert.Equal(t, "title is required", UserMessage(Validationf("title is required")))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(errors.New("pq: relation missing")))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(Wrap(errors.New("x"), Internal, "secret detail")))
	assert.True(t, Retryable(context.DeadlineExceeded))
}
