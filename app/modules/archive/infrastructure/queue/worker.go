package archivequeue

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// ArchiveStore is the slice of the session store the sweep needs.
type ArchiveStore interface {
	EndedBefore(ctx context.Context, cutoff time.Time) ([]sessiondb.Session, error)
	Archive(ctx context.Context, id shared.SessionID) error
}

// SweepWorker archives every session that ended before the retention
// cutoff. Each session archives independently; one failure does not stop
// the sweep.
type SweepWorker struct {
	river.WorkerDefaults[ArchiveSweepJob]

	sessions  ArchiveStore
	logger    *slog.Logger
	retention time.Duration
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(sessions ArchiveStore, logger *slog.Logger, retention time.Duration) *SweepWorker {
	return &SweepWorker{
		sessions:  sessions,
		logger:    logger,
		retention: retention,
	}
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[ArchiveSweepJob]) error {
	cutoff := time.Now().Add(-w.retention)

	ended, err := w.sessions.EndedBefore(ctx, cutoff)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list ended sessions", slog.Any("error", err))
		return err
	}
	if len(ended) == 0 {
		return nil
	}

	archived := 0
	for _, session := range ended {
		if err := w.sessions.Archive(ctx, session.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to archive session",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		archived++
	}

	w.logger.InfoContext(ctx, "Archive sweep finished",
		slog.Int("candidates", len(ended)),
		slog.Int("archived", archived),
	)
	return nil
}
