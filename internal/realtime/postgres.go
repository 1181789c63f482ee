package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultChannel = "campus_changes"

	// pg_notify rejects payloads of 8000 bytes or more
	maxNotifyPayload = 7900
)

// PGBridge carries changes between processes sharing one PostgreSQL database.
// Publish sends the change with pg_notify; Run listens on the same channel and
// feeds every received change into the local hub.
type PGBridge struct {
	db         *sqlx.DB
	connString string
	channel    string
	hub        *Hub
	retryDelay time.Duration
}

func NewPGBridge(db *sqlx.DB, connString string, hub *Hub) *PGBridge {
	return &PGBridge{
		db:         db,
		connString: connString,
		channel:    DefaultChannel,
		hub:        hub,
		retryDelay: 2 * time.Second,
	}
}

func (b *PGBridge) Publish(ctx context.Context, c Change) error {
	payload, err := encodeNotify(c)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, b.channel, payload)
	if err != nil {
		return fmt.Errorf("failed to notify change: %w", err)
	}
	return nil
}

func encodeNotify(c Change) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	if len(payload) < maxNotifyPayload {
		return string(payload), nil
	}

	c.New, c.Old, c.Truncated = nil, nil, true
	payload, err = json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	return string(payload), nil
}

// Run listens until ctx is cancelled, reconnecting after connection errors.
func (b *PGBridge) Run(ctx context.Context) {
	for {
		err := b.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("realtime listener disconnected, retrying", "error", err, "retry_in", b.retryDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.retryDelay):
		}
	}
}

func (b *PGBridge) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.connString)
	if err != nil {
		return fmt.Errorf("failed to connect listener: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Debug("realtime listener started", "channel", b.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		err = deliver(ctx, b.hub, []byte(n.Payload))
		if errors.Is(err, ErrHubClosed) {
			return err
		}
	}
}
