package deeplink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthCallbackRoundTrip(t *testing.T) {
	link := AuthCallback("campusconnect", "abc123")
	assert.Equal(t, "campusconnect://auth/callback?code=abc123", link)

	code, err := ParseAuthCallback("campusconnect", link)
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)
}

func TestParseAuthCallback(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		code    string
		wantErr error
	}{
		{"fragment", "campusconnect://auth/callback#code=xyz", "xyz", nil},
		{"trailing slash", "campusconnect://auth/callback/?code=xyz", "xyz", nil},
		{"other scheme", "https://auth/callback?code=xyz", "", ErrNotCallback},
		{"other path", "campusconnect://auth/reset?code=xyz", "", ErrNotCallback},
		{"missing code", "campusconnect://auth/callback", "", ErrMissingCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ParseAuthCallback("campusconnect", tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
		})
	}

	_, err := ParseAuthCallback("campusconnect", "campusconnect://auth/callback?error=access_denied&error_description=Link+expired")
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "Link expired", cbErr.Error())
}
