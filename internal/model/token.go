package model

import (
	"time"
)

type Token struct {
	ID            string     `db:"id"`
	UserID        string     `db:"user_id"`
	Type          string     `db:"type"` // "email_confirm"
	Token         string     `db:"token"`
	CodeChallenge *string    `db:"code_challenge"` // PKCE S256 challenge bound to the auth code
	ExpiresAt     time.Time  `db:"expires_at"`
	UsedAt        *time.Time `db:"used_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

const (
	TokenTypeEmailConfirm = "email_confirm"
)

func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *Token) IsUsed() bool {
	return t.UsedAt != nil
}

func (t *Token) IsValid() bool {
	return !t.IsExpired() && !t.IsUsed()
}
