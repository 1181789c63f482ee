package model

import (
	"path/filepath"
	"strings"
	"time"
)

type File struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	URL         string    `db:"url" json:"url"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	Size        int64     `db:"size" json:"size"`
	Category    string    `db:"category" json:"category"`
	UploaderID  string    `db:"uploader_id" json:"uploader_id"`
	StoragePath string    `db:"storage_path" json:"storage_path"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	// Joined field (not in the files table)
	UploaderName string `db:"-" json:"uploader_name,omitempty"`
}

func (f File) Key() string { return f.ID }

// Format is derived from the extension of the display name, e.g. "PDF".
func (f File) Format() string {
	ext := strings.TrimPrefix(filepath.Ext(f.Name), ".")
	if ext == "" {
		return "FILE"
	}
	return strings.ToUpper(ext)
}
