package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/templui/campus/internal/realtime"
)

const (
	TableProfiles         = "profiles"
	TablePosts            = "posts"
	TableFiles            = "files"
	TableDownloads        = "downloads"
	TableEventAttendances = "event_attendances"
)

// publish emits a row change after a committed write. The write already
// succeeded, so a failed publish is logged and otherwise ignored.
func publish(ctx context.Context, pub realtime.Publisher, table string, typ realtime.EventType, id string, newRow, oldRow any) {
	if pub == nil {
		return
	}

	change, err := realtime.NewChange(table, typ, id, newRow, oldRow)
	if err != nil {
		slog.Warn("failed to encode change", "table", table, "id", id, "error", err)
		return
	}

	err = pub.Publish(ctx, change)
	if err != nil {
		slog.Warn("failed to publish change", "table", table, "type", typ, "id", id, "error", err)
	}
}

func isUniqueViolation(err error) bool {
	// works for both SQLite and PostgreSQL
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}
