package model

import "time"

// Stats backs the profile dashboard. The zero value is the uninitialized state.
type Stats struct {
	PostsCreated    int       `json:"posts_created"`
	FilesUploaded   int       `json:"files_uploaded"`
	FilesDownloaded int       `json:"files_downloaded"`
	EventsAttended  int       `json:"events_attended"`
	TotalPosts      int       `json:"total_posts"`
	TotalFiles      int       `json:"total_files"`
	Loaded          bool      `json:"loaded"`
	UpdatedAt       time.Time `json:"updated_at"`
}
