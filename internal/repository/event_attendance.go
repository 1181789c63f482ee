package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
)

type EventAttendanceRepository interface {
	// Create is a no-op returning false when the user already attends the event.
	Create(ctx context.Context, attendance *model.EventAttendance) (bool, error)
	// Delete reports whether a row was removed; a missing row is not an error.
	Delete(ctx context.Context, userID, eventID string) (bool, error)
	ByUser(ctx context.Context, userID string) ([]*model.EventAttendance, error)
}

type eventAttendanceRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewEventAttendanceRepository(db *sqlx.DB, pub realtime.Publisher) EventAttendanceRepository {
	return &eventAttendanceRepository{db: db, pub: pub}
}

func (r *eventAttendanceRepository) Create(ctx context.Context, attendance *model.EventAttendance) (bool, error) {
	query := `INSERT INTO event_attendances (id, user_id, event_id, event_name, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, event_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		attendance.ID,
		attendance.UserID,
		attendance.EventID,
		attendance.EventName,
		attendance.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	publish(ctx, r.pub, TableEventAttendances, realtime.Insert, attendance.ID, attendance, nil)
	return true, nil
}

func (r *eventAttendanceRepository) Delete(ctx context.Context, userID, eventID string) (bool, error) {
	var existing model.EventAttendance
	err := r.db.GetContext(ctx, &existing, `SELECT * FROM event_attendances WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM event_attendances WHERE id = $1 AND user_id = $2`, existing.ID, userID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	publish(ctx, r.pub, TableEventAttendances, realtime.Delete, existing.ID, nil, existing)
	return true, nil
}

func (r *eventAttendanceRepository) ByUser(ctx context.Context, userID string) ([]*model.EventAttendance, error) {
	var attendances []*model.EventAttendance
	query := `SELECT * FROM event_attendances WHERE user_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &attendances, query, userID)
	if err != nil {
		return nil, err
	}

	return attendances, nil
}
