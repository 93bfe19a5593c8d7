package sessionservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// SessionService handles session lifecycle, seats, and per-round turn
// inputs.
type SessionService struct {
	SessionDB sessiondb.SessionDB
	EventBus  eventbus.EventBus
	GameLog   gamelogservice.Service
	logger    *slog.Logger
}

var _ Service = (*SessionService)(nil)

// NewSessionService creates a new SessionService.
func NewSessionService(db sessiondb.SessionDB, bus eventbus.EventBus, gameLog gamelogservice.Service, logger *slog.Logger) *SessionService {
	return &SessionService{
		SessionDB: db,
		EventBus:  bus,
		GameLog:   gameLog,
		logger:    logger,
	}
}

// CreateSession opens a new session in the lobby.
func (s *SessionService) CreateSession(ctx context.Context, name string) (*sessiondb.Session, error) {
	if name == "" {
		return nil, shared.NewValidationError("session name must not be empty")
	}

	session := &sessiondb.Session{
		Name:   name,
		Status: sessiondomain.StatusLobby,
	}

	if err := s.SessionDB.CreateSession(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create session", slog.Any("error", err))
		return nil, shared.NewTransientStoreError("failed to create session", err)
	}

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  session.ID,
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "session_created",
		Message:    fmt.Sprintf("session %q opens its lobby", name),
	})

	s.logger.InfoContext(ctx, "Session created",
		slog.String("session_id", session.ID.String()),
		slog.String("name", name),
	)
	return session, nil
}

// GetSession loads a session.
func (s *SessionService) GetSession(ctx context.Context, id shared.SessionID) (*sessiondb.Session, error) {
	session, err := s.SessionDB.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sessiondb.ErrNotFound) {
			return nil, shared.NewNotFoundError("session not found", err)
		}
		return nil, shared.NewTransientStoreError("failed to load session", err)
	}
	return session, nil
}

// JoinSession seats a participant. Seats can only be taken while the
// session is still in the lobby; the seat number is assigned by the store.
// accountID may be empty for an anonymous seat.
func (s *SessionService) JoinSession(ctx context.Context, id shared.SessionID, accountID, name string) (*sessiondb.Participant, error) {
	if name == "" {
		return nil, shared.NewValidationError("participant name must not be empty")
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sessiondomain.Normalize(session.Status) != sessiondomain.StatusLobby {
		return nil, shared.NewInvalidStateError("session not joinable")
	}

	participant := &sessiondb.Participant{
		SessionID: id,
		AccountID: accountID,
		Name:      name,
	}
	if err := s.SessionDB.AddParticipant(ctx, participant); err != nil {
		s.logger.ErrorContext(ctx, "Failed to seat participant",
			slog.String("session_id", id.String()),
			slog.Any("error", err),
		)
		return nil, shared.NewTransientStoreError("failed to join session", err)
	}

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:         id,
		Visibility:        gamelogdb.VisibilityPublic,
		EventType:         "participant_joined",
		ParticipantNumber: &participant.Number,
		Message:           fmt.Sprintf("%s takes seat %d", name, participant.Number),
	})

	return participant, nil
}

// SetRoundInputs stores a seat's desired slot and priority rank for the
// current round. The store's change notification drives the turn order
// recompute; this operation does not resolve slots itself.
func (s *SessionService) SetRoundInputs(ctx context.Context, id shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error {
	if desired != nil && *desired < 1 {
		return shared.NewValidationError("desired slot starts at 1")
	}
	if priority != nil && *priority < 1 {
		return shared.NewValidationError("priority rank starts at 1")
	}

	if err := s.SessionDB.SetRoundInputs(ctx, id, number, desired, priority); err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrParticipantNotFound):
			return shared.NewNotFoundError("participant not found", err)
		case errors.Is(err, sessiondb.ErrNotFound):
			return shared.NewNotFoundError("session not found", err)
		default:
			s.logger.ErrorContext(ctx, "Failed to store round inputs",
				slog.String("session_id", id.String()),
				slog.Int("participant", int(number)),
				slog.Any("error", err),
			)
			return shared.NewTransientStoreError("failed to store round inputs", err)
		}
	}
	return nil
}

// TransitionPhase moves a session through its lifecycle. The target status
// is validated against the state machine, then applied with a guarded
// update keyed on the status that was just read, so a concurrent
// transition loses cleanly instead of clobbering. Entering IN_ROUND begins
// the next round.
func (s *SessionService) TransitionPhase(ctx context.Context, id shared.SessionID, to sessiondomain.Status, phase sessiondomain.Phase) (*sessiondb.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := sessiondomain.Transition(session.Status, to); err != nil {
		return nil, shared.NewInvalidStateError(
			fmt.Sprintf("cannot transition session from %s to %s", sessiondomain.Normalize(session.Status), to),
		)
	}

	round := session.CurrentRound
	if sessiondomain.Normalize(to) == sessiondomain.StatusInRound {
		round++
	}

	updated, err := s.SessionDB.UpdateStatus(ctx, id, session.Status, to, round, phase)
	if err != nil {
		switch {
		case errors.Is(err, sessiondb.ErrStaleStatus):
			return nil, shared.NewInvalidStateError("session state changed concurrently")
		case errors.Is(err, sessiondb.ErrNotFound):
			return nil, shared.NewNotFoundError("session not found", err)
		default:
			s.logger.ErrorContext(ctx, "Failed to transition session",
				slog.String("session_id", id.String()),
				slog.Any("error", err),
			)
			return nil, shared.NewTransientStoreError("failed to transition session", err)
		}
	}

	s.publishPhase(ctx, updated)

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  id,
		Round:      updated.CurrentRound,
		Phase:      string(updated.CurrentPhase),
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "phase_transition",
		Message:    fmt.Sprintf("session moves to %s", updated.Status),
	})

	s.logger.InfoContext(ctx, "Session transitioned",
		slog.String("session_id", id.String()),
		slog.String("status", string(updated.Status)),
		slog.Int("round", int(updated.CurrentRound)),
	)
	return updated, nil
}

// SetActiveDuel records or clears the session's active sub-session.
func (s *SessionService) SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error {
	if err := s.SessionDB.SetActiveDuel(ctx, id, duelID); err != nil {
		if errors.Is(err, sessiondb.ErrNotFound) {
			return shared.NewNotFoundError("session not found", err)
		}
		return shared.NewTransientStoreError("failed to update active duel", err)
	}
	return nil
}

func (s *SessionService) publishPhase(ctx context.Context, session *sessiondb.Session) {
	payload, err := json.Marshal(map[string]any{
		"sessionId": session.ID.String(),
		"status":    session.Status,
		"round":     session.CurrentRound,
		"phase":     session.CurrentPhase,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal session.phase payload", slog.Any("error", err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.EventBus.Publish(ctx, eventbus.TopicSessionPhase, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish session.phase", slog.Any("error", err))
	}
}
