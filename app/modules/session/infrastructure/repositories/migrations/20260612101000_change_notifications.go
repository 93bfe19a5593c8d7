package sessionmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating change notification triggers for sessions and participants...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			// Shared trigger function: every table of interest funnels into one
			// NOTIFY channel, scoped by session.
			if _, err := tx.ExecContext(ctx, `
				CREATE OR REPLACE FUNCTION gloamhall_notify_changes() RETURNS trigger AS $$
				DECLARE
					rec RECORD;
					sid TEXT;
				BEGIN
					IF TG_OP = 'DELETE' THEN
						rec := OLD;
					ELSE
						rec := NEW;
					END IF;
					IF TG_TABLE_NAME = 'sessions' THEN
						sid := rec.id::text;
					ELSE
						sid := rec.session_id::text;
					END IF;
					PERFORM pg_notify(
						'gloamhall_changes',
						json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'session_id', sid)::text
					);
					RETURN rec;
				END;
				$$ LANGUAGE plpgsql;
			`); err != nil {
				return fmt.Errorf("failed to create notify function: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				DROP TRIGGER IF EXISTS sessions_notify_changes ON sessions;
				CREATE TRIGGER sessions_notify_changes
					AFTER INSERT OR UPDATE OR DELETE ON sessions
					FOR EACH ROW EXECUTE FUNCTION gloamhall_notify_changes();

				DROP TRIGGER IF EXISTS participants_notify_changes ON participants;
				CREATE TRIGGER participants_notify_changes
					AFTER INSERT OR UPDATE OR DELETE ON participants
					FOR EACH ROW EXECUTE FUNCTION gloamhall_notify_changes();
			`); err != nil {
				return fmt.Errorf("failed to create notify triggers: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping change notification triggers for sessions and participants...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TRIGGER IF EXISTS sessions_notify_changes ON sessions;
				DROP TRIGGER IF EXISTS participants_notify_changes ON participants;
			`); err != nil {
				return fmt.Errorf("failed to drop notify triggers: %w", err)
			}
			return nil
		})
	})
}
