package duelservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	dueldomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/domain"
	dueldb "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories"
	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// DuelService handles duel lifecycle and decision intake.
type DuelService struct {
	DuelDB   dueldb.DuelDB
	Sessions SessionAttacher
	EventBus eventbus.EventBus
	GameLog  gamelogservice.Service
	logger   *slog.Logger
}

var _ Service = (*DuelService)(nil)

// NewDuelService creates a new DuelService.
func NewDuelService(db dueldb.DuelDB, sessions SessionAttacher, bus eventbus.EventBus, gameLog gamelogservice.Service, logger *slog.Logger) *DuelService {
	return &DuelService{
		DuelDB:   db,
		Sessions: sessions,
		EventBus: bus,
		GameLog:  gameLog,
		logger:   logger,
	}
}

// CreateDuel opens an ACTIVE duel between two seats and records it as the
// session's active sub-session.
func (s *DuelService) CreateDuel(ctx context.Context, sessionID shared.SessionID, challenger, defender shared.ParticipantNumber) (*dueldb.Duel, error) {
	if challenger == defender {
		return nil, shared.NewValidationError("a duel needs two distinct participants")
	}
	if challenger < 1 || defender < 1 {
		return nil, shared.NewValidationError("participant numbers start at 1")
	}

	duel := &dueldb.Duel{
		SessionID:        sessionID,
		ChallengerNumber: challenger,
		DefenderNumber:   defender,
	}

	if err := s.DuelDB.CreateDuel(ctx, duel); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create duel", slog.Any("error", err))
		return nil, shared.NewTransientStoreError("failed to create duel", err)
	}

	duelID := duel.ID
	if err := s.Sessions.SetActiveDuel(ctx, sessionID, &duelID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record active duel on session",
			slog.String("session_id", sessionID.String()),
			slog.String("duel_id", duelID.String()),
			slog.Any("error", err),
		)
		return nil, shared.NewTransientStoreError("failed to attach duel to session", err)
	}

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  sessionID,
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "duel_opened",
		Message:    fmt.Sprintf("participants %d and %d enter a duel", challenger, defender),
	})

	s.logger.InfoContext(ctx, "Duel created",
		slog.String("duel_id", duel.ID.String()),
		slog.String("session_id", sessionID.String()),
	)
	return duel, nil
}

// GetDuel loads a duel.
func (s *DuelService) GetDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error) {
	duel, err := s.DuelDB.GetDuel(ctx, duelID)
	if err != nil {
		if errors.Is(err, dueldb.ErrNotFound) {
			return nil, shared.NewNotFoundError("duel not found", err)
		}
		return nil, shared.NewTransientStoreError("failed to load duel", err)
	}
	return duel, nil
}

// SubmitDecision accepts one side's decision while the duel is ACTIVE.
// Resubmission from the same side overwrites that side's prior decision
// (last write wins); a submitter matching neither side is rejected. Status
// is re-read immediately before deciding and enforced again by the guarded
// row update, so a duel that left ACTIVE between the two checks still
// rejects the write.
func (s *DuelService) SubmitDecision(ctx context.Context, duelID shared.DuelID, participant shared.ParticipantNumber, decision string) (*DecisionResult, error) {
	if decision == "" {
		return nil, shared.NewValidationError("decision must not be empty")
	}

	duel, err := s.GetDuel(ctx, duelID)
	if err != nil {
		return nil, err
	}

	if duel.Status != dueldomain.StatusActive {
		return nil, shared.NewInvalidStateError("duel not active")
	}

	side, ok := dueldomain.SideFor(duel.ChallengerNumber, duel.DefenderNumber, participant)
	if !ok {
		return nil, shared.NewForbiddenError("not a participant of this duel")
	}

	updated, err := s.DuelDB.SetDecision(ctx, duelID, side, decision)
	if err != nil {
		switch {
		case errors.Is(err, dueldb.ErrNotFound):
			return nil, shared.NewNotFoundError("duel not found", err)
		case errors.Is(err, dueldb.ErrNotActive):
			return nil, shared.NewInvalidStateError("duel not active")
		default:
			s.logger.ErrorContext(ctx, "Failed to store duel decision",
				slog.String("duel_id", duelID.String()),
				slog.Any("error", err),
			)
			return nil, shared.NewTransientStoreError("failed to store decision", err)
		}
	}

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:         updated.SessionID,
		Visibility:        gamelogdb.VisibilityModerator,
		EventType:         "duel_decision",
		ParticipantNumber: &participant,
		Message:           fmt.Sprintf("participant %d locked in a %s decision", participant, side),
	})

	s.logger.InfoContext(ctx, "Duel decision accepted",
		slog.String("duel_id", duelID.String()),
		slog.Int("participant", int(participant)),
		slog.String("side", string(side)),
	)

	return &DecisionResult{
		ParticipantNumber: participant,
		Decision:          decision,
	}, nil
}

// ResolveDuel transitions an ACTIVE duel with both decisions present to
// RESOLVED and detaches it from its session.
func (s *DuelService) ResolveDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error) {
	duel, err := s.GetDuel(ctx, duelID)
	if err != nil {
		return nil, err
	}

	if duel.Status != dueldomain.StatusActive {
		return nil, shared.NewInvalidStateError("duel not active")
	}
	if !dueldomain.Resolvable(duel.ChallengerDecision, duel.DefenderDecision) {
		return nil, shared.NewInvalidStateError("both decisions required before resolution")
	}

	resolved, err := s.DuelDB.UpdateStatus(ctx, duelID, dueldomain.StatusResolved)
	if err != nil {
		return nil, s.mapTerminalTransitionError(ctx, duelID, err)
	}

	s.detachFromSession(ctx, resolved)
	s.publishResolved(ctx, resolved)

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  resolved.SessionID,
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "duel_resolved",
		Message:    fmt.Sprintf("the duel between %d and %d is decided", resolved.ChallengerNumber, resolved.DefenderNumber),
	})

	return resolved, nil
}

// CancelDuel transitions an ACTIVE duel to CANCELLED and detaches it from
// its session.
func (s *DuelService) CancelDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error) {
	duel, err := s.GetDuel(ctx, duelID)
	if err != nil {
		return nil, err
	}

	if duel.Status != dueldomain.StatusActive {
		return nil, shared.NewInvalidStateError("duel not active")
	}

	cancelled, err := s.DuelDB.UpdateStatus(ctx, duelID, dueldomain.StatusCancelled)
	if err != nil {
		return nil, s.mapTerminalTransitionError(ctx, duelID, err)
	}

	s.detachFromSession(ctx, cancelled)

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  cancelled.SessionID,
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "duel_cancelled",
		Message:    fmt.Sprintf("the duel between %d and %d is called off", cancelled.ChallengerNumber, cancelled.DefenderNumber),
	})

	return cancelled, nil
}

func (s *DuelService) mapTerminalTransitionError(ctx context.Context, duelID shared.DuelID, err error) error {
	switch {
	case errors.Is(err, dueldb.ErrNotFound):
		return shared.NewNotFoundError("duel not found", err)
	case errors.Is(err, dueldb.ErrNotActive):
		return shared.NewInvalidStateError("duel not active")
	default:
		s.logger.ErrorContext(ctx, "Failed to transition duel",
			slog.String("duel_id", duelID.String()),
			slog.Any("error", err),
		)
		return shared.NewTransientStoreError("failed to transition duel", err)
	}
}

func (s *DuelService) detachFromSession(ctx context.Context, duel *dueldb.Duel) {
	if err := s.Sessions.SetActiveDuel(ctx, duel.SessionID, nil); err != nil {
		s.logger.ErrorContext(ctx, "Failed to detach duel from session",
			slog.String("session_id", duel.SessionID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *DuelService) publishResolved(ctx context.Context, duel *dueldb.Duel) {
	payload, err := json.Marshal(map[string]string{
		"duelId":    duel.ID.String(),
		"sessionId": duel.SessionID.String(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal duel.resolved payload", slog.Any("error", err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.EventBus.Publish(ctx, eventbus.TopicDuelResolved, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish duel.resolved", slog.Any("error", err))
	}
}
