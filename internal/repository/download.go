package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
)

type DownloadRepository interface {
	Create(ctx context.Context, download *model.Download) error
}

type downloadRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewDownloadRepository(db *sqlx.DB, pub realtime.Publisher) DownloadRepository {
	return &downloadRepository{db: db, pub: pub}
}

func (r *downloadRepository) Create(ctx context.Context, download *model.Download) error {
	query := `INSERT INTO downloads (id, user_id, file_id, downloaded_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, download.ID, download.UserID, download.FileID, download.DownloadedAt)
	if err != nil {
		return err
	}

	publish(ctx, r.pub, TableDownloads, realtime.Insert, download.ID, download, nil)
	return nil
}
