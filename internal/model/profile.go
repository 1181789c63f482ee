package model

import "time"

// Profile is 1:1 with a User; ID equals the owning user's ID.
type Profile struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	Role       string    `db:"role" json:"role"`
	Department *string   `db:"department" json:"department"`
	Year       *string   `db:"year" json:"year"`
	Bio        *string   `db:"bio" json:"bio"`
	Phone      *string   `db:"phone" json:"phone"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (p Profile) Key() string { return p.ID }
