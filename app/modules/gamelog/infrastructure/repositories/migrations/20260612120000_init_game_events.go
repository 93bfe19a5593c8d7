package gamelogmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating game_events table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS game_events (
					id                  BIGSERIAL PRIMARY KEY,
					session_id          UUID NOT NULL,
					round               INTEGER NOT NULL DEFAULT 0,
					phase               VARCHAR(32),
					visibility          VARCHAR(16) NOT NULL DEFAULT 'public',
					event_type          TEXT NOT NULL,
					participant_number  INTEGER,
					message             TEXT,
					payload             JSONB,
					created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_game_events_session_created ON game_events(session_id, created_at);
			`); err != nil {
				return fmt.Errorf("failed to create game_events table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping game_events table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS game_events;`); err != nil {
				return fmt.Errorf("failed to drop game_events table: %w", err)
			}
			return nil
		})
	})
}
