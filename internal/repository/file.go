package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
)

var (
	// ErrFileNotFound is also returned when the requester did not upload the file.
	ErrFileNotFound = errors.New("file not found")
)

const fileSelect = `
	SELECT f.*, pr.name AS uploader_name
	FROM files f
	JOIN profiles pr ON pr.id = f.uploader_id`

type FileQuery struct {
	Category   string
	UploaderID string
}

type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	ByID(ctx context.Context, id string) (*model.File, error)
	List(ctx context.Context, q FileQuery) ([]*model.File, error)
	Categories(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id, uploaderID string) (*model.File, error)
}

type fileRow struct {
	model.File
	UploaderName string `db:"uploader_name"`
}

func (r fileRow) file() *model.File {
	f := r.File
	f.UploaderName = r.UploaderName
	return &f
}

type fileRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewFileRepository(db *sqlx.DB, pub realtime.Publisher) FileRepository {
	return &fileRepository{db: db, pub: pub}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	query := `INSERT INTO files (id, name, url, mime_type, size, category, uploader_id, storage_path, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID,
		file.Name,
		file.URL,
		file.MimeType,
		file.Size,
		file.Category,
		file.UploaderID,
		file.StoragePath,
		file.CreatedAt,
	)
	if err != nil {
		return err
	}

	// callers and subscribers get the row as List returns it
	err = r.db.GetContext(ctx, &file.UploaderName, `SELECT name FROM profiles WHERE id = $1`, file.UploaderID)
	if err != nil {
		slog.Warn("failed to resolve uploader name", "file_id", file.ID, "error", err)
	}

	publish(ctx, r.pub, TableFiles, realtime.Insert, file.ID, file, nil)
	return nil
}

func (r *fileRepository) ByID(ctx context.Context, id string) (*model.File, error) {
	var row fileRow
	err := r.db.GetContext(ctx, &row, fileSelect+` WHERE f.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.file(), nil
}

// List returns files newest first.
func (r *fileRepository) List(ctx context.Context, q FileQuery) ([]*model.File, error) {
	var where []string
	var args []any

	if q.Category != "" {
		where = append(where, "f.category = ?")
		args = append(args, q.Category)
	}
	if q.UploaderID != "" {
		where = append(where, "f.uploader_id = ?")
		args = append(args, q.UploaderID)
	}

	query := fileSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY f.created_at DESC"

	var rows []fileRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	files := make([]*model.File, 0, len(rows))
	for _, row := range rows {
		files = append(files, row.file())
	}
	return files, nil
}

func (r *fileRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.SelectContext(ctx, &categories, `SELECT DISTINCT category FROM files ORDER BY category`)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Delete removes the metadata row when uploaderID owns it and returns it.
func (r *fileRepository) Delete(ctx context.Context, id, uploaderID string) (*model.File, error) {
	file, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND uploader_id = $2`, id, uploaderID)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrFileNotFound
	}

	publish(ctx, r.pub, TableFiles, realtime.Delete, file.ID, nil, file)
	return file, nil
}
