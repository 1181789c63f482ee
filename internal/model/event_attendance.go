package model

import "time"

type EventAttendance struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	EventName string    `db:"event_name" json:"event_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
