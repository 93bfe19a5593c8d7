package archivequeue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Service runs the retention sweep on a River queue. The sweep is a
// periodic job; River's scheduler also survives process restarts, so a
// missed interval is made up on the next start.
type Service struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates the archive queue service. retention is how long an
// ended session is kept before archival; interval is how often the sweep
// runs.
func NewService(ctx context.Context, dsn string, sessions ArchiveStore, logger *slog.Logger, retention, interval time.Duration) (*Service, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewSweepWorker(sessions, logger, retention))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(interval),
				func() (river.JobArgs, *river.InsertOpts) {
					return ArchiveSweepJob{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Service{
		client: client,
		pool:   pool,
		logger: logger,
	}, nil
}

// Start starts the queue service.
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start archive queue: %w", err)
	}
	s.logger.InfoContext(ctx, "Archive queue started")
	return nil
}

// Stop drains in-flight jobs and releases the pool.
func (s *Service) Stop(ctx context.Context) error {
	err := s.client.Stop(ctx)
	s.pool.Close()
	if err != nil {
		return fmt.Errorf("failed to stop archive queue: %w", err)
	}
	return nil
}
