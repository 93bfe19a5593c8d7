package duelmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating duels table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS duels (
					id                   UUID PRIMARY KEY,
					session_id           UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
					status               VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
					challenger_number    INTEGER NOT NULL,
					defender_number      INTEGER NOT NULL,
					challenger_decision  TEXT,
					defender_decision    TEXT,
					created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					resolved_at          TIMESTAMPTZ,
					CHECK (challenger_number <> defender_number)
				);
				CREATE INDEX IF NOT EXISTS idx_duels_session_id ON duels(session_id);
				CREATE INDEX IF NOT EXISTS idx_duels_status ON duels(status);
			`); err != nil {
				return fmt.Errorf("failed to create duels table: %w", err)
			}

			// Relies on gloamhall_notify_changes() from the session migrations.
			if _, err := tx.ExecContext(ctx, `
				DROP TRIGGER IF EXISTS duels_notify_changes ON duels;
				CREATE TRIGGER duels_notify_changes
					AFTER INSERT OR UPDATE OR DELETE ON duels
					FOR EACH ROW EXECUTE FUNCTION gloamhall_notify_changes();
			`); err != nil {
				return fmt.Errorf("failed to create duels notify trigger: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping duels table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS duels;`); err != nil {
				return fmt.Errorf("failed to drop duels table: %w", err)
			}
			return nil
		})
	})
}
