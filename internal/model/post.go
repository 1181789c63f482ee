package model

import (
	"time"
)

const (
	PostTypeAnnouncement = "announcement"
	PostTypeEvent        = "event"
	PostTypeDiscussion   = "discussion"
	PostTypeHelp         = "help"
)

var PostTypes = []string{PostTypeAnnouncement, PostTypeEvent, PostTypeDiscussion, PostTypeHelp}

func IsPostType(t string) bool {
	for _, pt := range PostTypes {
		if pt == t {
			return true
		}
	}
	return false
}

type Post struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	Type      string    `db:"type" json:"type"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Joined / computed fields (not in the posts table)
	Author        *PostAuthor `db:"-" json:"author,omitempty"`
	LikesCount    int         `db:"-" json:"likes_count"`
	CommentsCount int         `db:"-" json:"comments_count"`
	Liked         bool        `db:"-" json:"liked"`
}

func (p Post) Key() string { return p.ID }

// PostAuthor is the subset of the author's profile shown next to a post.
type PostAuthor struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Department *string `json:"department"`
	Email      string  `json:"email"`
}
