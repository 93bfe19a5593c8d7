package sessionservice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/internal/throttle"
)

// Snapshot is the directory's read-mostly view of the active sessions.
type Snapshot struct {
	Sessions         []sessiondb.SessionSummary `json:"sessions"`
	SessionCount     int                        `json:"sessionCount"`
	ParticipantCount int                        `json:"participantCount"`
	RefreshedAt      time.Time                  `json:"refreshedAt"`
}

// Directory maintains the live session view for discovery. Three things
// drive a refresh: a fixed periodic timer (forced), change notifications
// for the session and participant tables (throttled, then gated), and
// explicit caller requests. Non-forced refreshes are gated to at most one
// per minimum interval; a request arriving inside the interval is deferred
// exactly once to fire when the interval elapses, never dropped. A forced
// refresh always executes, resets the gate, and discards any pending
// deferral.
type Directory struct {
	sessions     sessiondb.SessionDB
	logger       *slog.Logger
	minInterval  time.Duration
	pollInterval time.Duration
	throttle     *throttle.Throttle
	now          func() time.Time

	mu            sync.Mutex
	lastRefreshed time.Time
	deferred      *time.Timer
	snapshot      Snapshot
	closed        bool
}

// NewDirectory creates a Directory. Call Run to start the periodic timer
// and Close on teardown.
func NewDirectory(db sessiondb.SessionDB, logger *slog.Logger, minInterval, pollInterval, throttleDelay time.Duration) *Directory {
	d := &Directory{
		sessions:     db,
		logger:       logger,
		minInterval:  minInterval,
		pollInterval: pollInterval,
		now:          time.Now,
	}
	d.throttle = throttle.New(throttleDelay, func() {
		d.Refresh(context.Background(), false)
	})
	return d
}

// Refresh re-reads the active session view. A forced refresh always
// executes and resets the gate. A non-forced refresh executes only if the
// minimum interval has elapsed since the last refresh; otherwise it is
// scheduled once for the moment the interval elapses.
func (d *Directory) Refresh(ctx context.Context, force bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	now := d.now()
	if !force {
		if elapsed := now.Sub(d.lastRefreshed); elapsed < d.minInterval {
			if d.deferred == nil {
				d.deferred = time.AfterFunc(d.minInterval-elapsed, d.fireDeferred)
			}
			d.mu.Unlock()
			return
		}
	}

	d.stopDeferredLocked()
	d.lastRefreshed = now
	d.mu.Unlock()

	d.load(ctx)
}

// NotifyChanged feeds a change notification for the session or participant
// tables into the directory's throttle.
func (d *Directory) NotifyChanged() {
	d.throttle.Submit()
}

// Snapshot returns the last refreshed view. Zero before the first refresh.
func (d *Directory) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// Run performs an initial refresh and then forces one every poll interval
// until ctx is cancelled.
func (d *Directory) Run(ctx context.Context) {
	d.Refresh(ctx, true)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Refresh(ctx, true)
		}
	}
}

// Close cancels the throttle and any pending deferred refresh. No refresh
// runs after Close returns other than one that already started.
func (d *Directory) Close() {
	d.throttle.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.stopDeferredLocked()
}

func (d *Directory) fireDeferred() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.deferred = nil
	d.lastRefreshed = d.now()
	d.mu.Unlock()

	d.load(context.Background())
}

func (d *Directory) stopDeferredLocked() {
	if d.deferred != nil {
		d.deferred.Stop()
		d.deferred = nil
	}
}

func (d *Directory) load(ctx context.Context) {
	summaries, err := d.sessions.ActiveSummaries(ctx)
	if err != nil {
		// Keep serving the stale snapshot.
		d.logger.ErrorContext(ctx, "Failed to refresh session directory", slog.Any("error", err))
		return
	}

	participants := 0
	for _, summary := range summaries {
		participants += summary.ParticipantCount
	}

	d.mu.Lock()
	d.snapshot = Snapshot{
		Sessions:         summaries,
		SessionCount:     len(summaries),
		ParticipantCount: participants,
		RefreshedAt:      d.now(),
	}
	d.mu.Unlock()
}
