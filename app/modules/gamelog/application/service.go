package gamelogservice

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Entry is what callers hand the log. It becomes an immutable Event row.
type Entry struct {
	SessionID         shared.SessionID
	Round             shared.RoundNumber
	Phase             string
	Visibility        gamelogdb.Visibility
	EventType         string
	ParticipantNumber *shared.ParticipantNumber
	Message           string
	Payload           json.RawMessage
}

// Service records what happened without affecting authoritative state.
// Append and AppendBatch are best-effort and side-effect-only: a write
// failure is reported to the operator channel and never raised back to the
// caller's primary mutation.
type Service interface {
	Append(ctx context.Context, entry Entry)
	AppendBatch(ctx context.Context, entries []Entry)
	List(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error)
}

// GameLogService implements Service.
type GameLogService struct {
	GameLogDB gamelogdb.GameLogDB
	logger    *slog.Logger
	limiter   *rate.Limiter
	failures  prometheus.Counter
}

// NewGameLogService creates a new GameLogService. writesPerSecond bounds
// the insert rate by smoothing, not by dropping. registry may be nil.
func NewGameLogService(db gamelogdb.GameLogDB, logger *slog.Logger, writesPerSecond float64, burst int, registry *prometheus.Registry) *GameLogService {
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gloamhall_gamelog_write_failures_total",
		Help: "Best-effort game log writes that failed.",
	})
	if registry != nil {
		registry.MustRegister(failures)
	}

	return &GameLogService{
		GameLogDB: db,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Limit(writesPerSecond), burst),
		failures:  failures,
	}
}

// Append records one entry.
func (s *GameLogService) Append(ctx context.Context, entry Entry) {
	if err := s.limiter.Wait(ctx); err != nil {
		s.reportFailure(ctx, entry.EventType, err)
		return
	}

	event := entryToEvent(entry)
	if err := s.GameLogDB.InsertEvent(ctx, event); err != nil {
		s.reportFailure(ctx, entry.EventType, err)
	}
}

// AppendBatch records several entries in one write. Empty batches are a
// no-op.
func (s *GameLogService) AppendBatch(ctx context.Context, entries []Entry) {
	if len(entries) == 0 {
		return
	}

	if err := s.limiter.WaitN(ctx, len(entries)); err != nil {
		s.reportFailure(ctx, "batch", err)
		return
	}

	events := make([]*gamelogdb.Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, entryToEvent(entry))
	}

	if err := s.GameLogDB.InsertEvents(ctx, events); err != nil {
		s.reportFailure(ctx, "batch", err)
	}
}

// List reads records matching filter. The log tags visibility tiers; it
// does not enforce them.
func (s *GameLogService) List(ctx context.Context, filter gamelogdb.Filter) ([]gamelogdb.Event, error) {
	return s.GameLogDB.ListEvents(ctx, filter)
}

func (s *GameLogService) reportFailure(ctx context.Context, eventType string, err error) {
	s.failures.Inc()
	s.logger.ErrorContext(ctx, "Game log write failed",
		slog.String("event_type", eventType),
		slog.Any("error", err),
	)
}

func entryToEvent(entry Entry) *gamelogdb.Event {
	visibility := entry.Visibility
	if visibility == "" {
		visibility = gamelogdb.VisibilityPublic
	}
	return &gamelogdb.Event{
		SessionID:         entry.SessionID,
		Round:             entry.Round,
		Phase:             entry.Phase,
		Visibility:        visibility,
		EventType:         entry.EventType,
		ParticipantNumber: entry.ParticipantNumber,
		Message:           entry.Message,
		Payload:           entry.Payload,
	}
}
