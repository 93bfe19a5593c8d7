package sessionmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating sessions, participants, and archived_sessions tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS sessions (
					id              UUID PRIMARY KEY,
					name            TEXT NOT NULL,
					status          VARCHAR(32) NOT NULL DEFAULT 'LOBBY',
					current_round   INTEGER NOT NULL DEFAULT 0,
					current_phase   VARCHAR(32),
					active_duel_id  UUID,
					created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					ended_at        TIMESTAMPTZ
				);
				CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
				CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at) WHERE ended_at IS NOT NULL;
			`); err != nil {
				return fmt.Errorf("failed to create sessions table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS participants (
					id                  BIGSERIAL PRIMARY KEY,
					session_id          UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
					participant_number  INTEGER NOT NULL,
					account_id          TEXT,
					name                TEXT NOT NULL,
					desired_slot        INTEGER,
					priority_rank       INTEGER,
					created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(session_id, participant_number)
				);
				CREATE INDEX IF NOT EXISTS idx_participants_session_id ON participants(session_id);
			`); err != nil {
				return fmt.Errorf("failed to create participants table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS archived_sessions (
					id                 UUID PRIMARY KEY,
					name               TEXT NOT NULL,
					final_round        INTEGER NOT NULL,
					participant_count  INTEGER NOT NULL,
					ended_at           TIMESTAMPTZ,
					archived_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create archived_sessions table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping sessions, participants, and archived_sessions tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS archived_sessions;
				DROP TABLE IF EXISTS participants;
				DROP TABLE IF EXISTS sessions;
			`); err != nil {
				return fmt.Errorf("failed to drop session tables: %w", err)
			}
			return nil
		})
	})
}
