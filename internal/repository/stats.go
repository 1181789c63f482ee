package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// StatsRepository runs the count-only queries behind the dashboard.
type StatsRepository interface {
	PostsByAuthor(ctx context.Context, userID string) (int, error)
	FilesByUploader(ctx context.Context, userID string) (int, error)
	DownloadsByUser(ctx context.Context, userID string) (int, error)
	AttendancesByUser(ctx context.Context, userID string) (int, error)
	Posts(ctx context.Context) (int, error)
	Files(ctx context.Context) (int, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *statsRepository) PostsByAuthor(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM posts WHERE author_id = $1`, userID)
}

func (r *statsRepository) FilesByUploader(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM files WHERE uploader_id = $1`, userID)
}

func (r *statsRepository) DownloadsByUser(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM downloads WHERE user_id = $1`, userID)
}

func (r *statsRepository) AttendancesByUser(ctx context.Context, userID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM event_attendances WHERE user_id = $1`, userID)
}

func (r *statsRepository) Posts(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM posts`)
}

func (r *statsRepository) Files(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM files`)
}
