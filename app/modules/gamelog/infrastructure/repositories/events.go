package gamelogdb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// GameLogDB handles database operations for the append-only event log.
type GameLogDB interface {
	InsertEvent(ctx context.Context, event *Event) error
	InsertEvents(ctx context.Context, events []*Event) error
	ListEvents(ctx context.Context, filter Filter) ([]Event, error)
}

// GameLogDBImpl implements GameLogDB on bun.
type GameLogDBImpl struct {
	DB *bun.DB
}

var _ GameLogDB = (*GameLogDBImpl)(nil)

// InsertEvent appends one record.
func (db *GameLogDBImpl) InsertEvent(ctx context.Context, event *Event) error {
	if _, err := db.DB.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert game event: %w", err)
	}
	return nil
}

// InsertEvents appends a batch in one statement. Empty batches are a no-op.
func (db *GameLogDBImpl) InsertEvents(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	if _, err := db.DB.NewInsert().Model(&events).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert game events: %w", err)
	}
	return nil
}

// ListEvents reads records matching filter in creation order.
func (db *GameLogDBImpl) ListEvents(ctx context.Context, filter Filter) ([]Event, error) {
	var events []Event

	query := db.DB.NewSelect().
		Model(&events).
		Where("session_id = ?", filter.SessionID).
		Order("created_at ASC", "id ASC")

	if filter.Round != nil {
		query = query.Where("round = ?", *filter.Round)
	}
	if filter.Phase != nil {
		query = query.Where("phase = ?", *filter.Phase)
	}
	if filter.Visibility != nil {
		query = query.Where("visibility = ?", *filter.Visibility)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list game events: %w", err)
	}
	return events, nil
}
