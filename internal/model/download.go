package model

import "time"

// Download is one recorded download action. Rows are never deduplicated.
type Download struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	FileID       string    `db:"file_id" json:"file_id"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}
