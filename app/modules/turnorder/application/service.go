package turnorderservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	gamelogservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/application"
	gamelogdb "github.com/Hollow-Moon-Club/gloamhall/app/modules/gamelog/infrastructure/repositories"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	turnorderdomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/turnorder/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
	"github.com/Hollow-Moon-Club/gloamhall/internal/throttle"
)

// ParticipantSource is the slice of the session store the turn order
// module reads.
type ParticipantSource interface {
	GetParticipants(ctx context.Context, sessionID shared.SessionID) ([]sessiondb.Participant, error)
}

// TurnOrder is one round's resolved slots and the action order they
// induce.
type TurnOrder struct {
	SessionID shared.SessionID           `json:"sessionId"`
	Slots     turnorderdomain.Assignment `json:"slots"`
	Order     []shared.ParticipantNumber `json:"order"`
}

// TurnOrderService recomputes the turn order whenever a session's round
// inputs change. Recomputes are driven by participant-table change
// notifications, throttled per session so a burst of edits costs one
// store read. The result is an announcement on the bus, never stored:
// the assignment is a deterministic function of the round inputs and is
// recomputed idempotently.
type TurnOrderService struct {
	Participants ParticipantSource
	EventBus     eventbus.EventBus
	GameLog      gamelogservice.Service
	logger       *slog.Logger
	delay        time.Duration

	mu        sync.Mutex
	throttles map[shared.SessionID]*throttle.Throttle
	closed    bool
}

// NewTurnOrderService creates a new TurnOrderService.
func NewTurnOrderService(participants ParticipantSource, bus eventbus.EventBus, gameLog gamelogservice.Service, logger *slog.Logger, delay time.Duration) *TurnOrderService {
	return &TurnOrderService{
		Participants: participants,
		EventBus:     bus,
		GameLog:      gameLog,
		logger:       logger,
		delay:        delay,
		throttles:    make(map[shared.SessionID]*throttle.Throttle),
	}
}

// NotifyChanged schedules a throttled recompute for one session.
func (s *TurnOrderService) NotifyChanged(sessionID shared.SessionID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	th, ok := s.throttles[sessionID]
	if !ok {
		th = throttle.New(s.delay, func() {
			s.Recompute(context.Background(), sessionID)
		})
		s.throttles[sessionID] = th
	}
	s.mu.Unlock()

	th.Submit()
}

// Recompute resolves the session's slots from the current round inputs
// and announces the result. Sessions whose inputs are incomplete are
// skipped; the next change notification tries again.
func (s *TurnOrderService) Recompute(ctx context.Context, sessionID shared.SessionID) {
	participants, err := s.Participants.GetParticipants(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load participants for turn order",
			slog.String("session_id", sessionID.String()),
			slog.Any("error", err),
		)
		return
	}
	if len(participants) == 0 {
		return
	}

	priority, desired, ok := roundInputs(participants)
	if !ok {
		s.logger.DebugContext(ctx, "Round inputs incomplete, skipping turn order",
			slog.String("session_id", sessionID.String()),
		)
		return
	}

	assignment, err := turnorderdomain.ResolveSlots(priority, desired, len(participants))
	if err != nil {
		s.logger.ErrorContext(ctx, "Turn order inputs rejected",
			slog.String("session_id", sessionID.String()),
			slog.Any("error", err),
		)
		return
	}

	order := turnorderdomain.DeriveActionOrder(assignment)
	s.publish(ctx, TurnOrder{SessionID: sessionID, Slots: assignment, Order: order})

	s.GameLog.Append(ctx, gamelogservice.Entry{
		SessionID:  sessionID,
		Visibility: gamelogdb.VisibilityPublic,
		EventType:  "turn_order_updated",
		Message:    fmt.Sprintf("turn order resolved for %d participants", len(participants)),
	})
}

// Close cancels all pending recomputes.
func (s *TurnOrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, th := range s.throttles {
		th.Close()
	}
}

// roundInputs turns seat rows into resolver input. Every seat must carry a
// priority rank before the order can be resolved; desired slots default
// inside the resolver.
func roundInputs(participants []sessiondb.Participant) ([]shared.ParticipantNumber, map[shared.ParticipantNumber]shared.Slot, bool) {
	type ranked struct {
		number shared.ParticipantNumber
		rank   int
	}

	rankedSeats := make([]ranked, 0, len(participants))
	desired := make(map[shared.ParticipantNumber]shared.Slot)

	for _, p := range participants {
		if p.PriorityRank == nil {
			return nil, nil, false
		}
		rankedSeats = append(rankedSeats, ranked{number: p.Number, rank: *p.PriorityRank})
		if p.DesiredSlot != nil {
			desired[p.Number] = *p.DesiredSlot
		}
	}

	// Seat number breaks rank ties so the resolved order is a pure
	// function of the stored inputs.
	sort.Slice(rankedSeats, func(i, j int) bool {
		if rankedSeats[i].rank != rankedSeats[j].rank {
			return rankedSeats[i].rank < rankedSeats[j].rank
		}
		return rankedSeats[i].number < rankedSeats[j].number
	})

	priority := make([]shared.ParticipantNumber, len(rankedSeats))
	for i, seat := range rankedSeats {
		priority[i] = seat.number
	}
	return priority, desired, true
}

func (s *TurnOrderService) publish(ctx context.Context, order TurnOrder) {
	payload, err := json.Marshal(order)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal turn order", slog.Any("error", err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.EventBus.Publish(ctx, eventbus.TopicTurnOrderUpdated, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish turn order", slog.Any("error", err))
	}
}
