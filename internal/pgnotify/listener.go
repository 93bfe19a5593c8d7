// Package pgnotify bridges Postgres NOTIFY payloads onto the event bus as
// change notifications. Row triggers NOTIFY on a single channel; consumers
// subscribe per-table topics on the bus.
package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
)

// Channel is the Postgres notification channel all row triggers fire on.
const Channel = "gloamhall_changes"

const reconnectDelay = 2 * time.Second

// Listener holds one dedicated connection in LISTEN mode and republishes
// every notification onto the bus.
type Listener struct {
	dsn    string
	bus    eventbus.EventBus
	logger *slog.Logger
}

// New creates a Listener. Run must be called to start it.
func New(dsn string, bus eventbus.EventBus, logger *slog.Logger) *Listener {
	return &Listener{
		dsn:    dsn,
		bus:    bus,
		logger: logger,
	}
}

// Run listens until ctx is cancelled, reconnecting on connection loss.
// Notifications arriving while disconnected are lost; consumers tolerate
// that because the directory also polls on a fixed timer.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("Change listener disconnected, reconnecting",
				slog.Any("error", err),
				slog.Duration("delay", reconnectDelay),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect for LISTEN: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("failed to LISTEN on %s: %w", Channel, err)
	}

	l.logger.Info("Listening for store change notifications", slog.String("channel", Channel))

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		change, err := parsePayload(notification.Payload)
		if err != nil {
			// A malformed payload is an operator problem, not a reason to
			// drop the connection.
			l.logger.Error("Discarding malformed change payload",
				slog.String("payload", notification.Payload),
				slog.Any("error", err),
			)
			continue
		}

		msg, err := change.Message()
		if err != nil {
			l.logger.Error("Failed to build change message", slog.Any("error", err))
			continue
		}

		if err := l.bus.Publish(ctx, eventbus.ChangeTopic(change.Table), msg); err != nil {
			l.logger.Error("Failed to publish change notification",
				slog.String("table", change.Table),
				slog.Any("error", err),
			)
		}
	}
}

func parsePayload(payload string) (eventbus.ChangeNotification, error) {
	var change eventbus.ChangeNotification
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return eventbus.ChangeNotification{}, fmt.Errorf("failed to unmarshal NOTIFY payload: %w", err)
	}
	if change.Table == "" {
		return eventbus.ChangeNotification{}, fmt.Errorf("NOTIFY payload missing table")
	}
	if change.Op == "" {
		return eventbus.ChangeNotification{}, fmt.Errorf("NOTIFY payload missing op")
	}
	return change, nil
}
