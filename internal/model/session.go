package model

import "time"

// Session is a signed-in user's credential as held by the client.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
