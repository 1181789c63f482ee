package model

import (
	"time"
)

const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
)

type User struct {
	ID              string       `db:"id"`
	Email           string       `db:"email"`
	PasswordHash    *string      `db:"password_hash"`
	Metadata        UserMetadata `db:"metadata"`
	EmailVerifiedAt *time.Time   `db:"email_verified_at"`
	CreatedAt       time.Time    `db:"created_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) IsConfirmed() bool {
	return u.EmailVerifiedAt != nil
}
