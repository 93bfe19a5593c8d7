package turnordersubscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	turnorderservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/turnorder/application"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// TurnOrderSubscribers drives turn order recomputes from participant
// change notifications.
type TurnOrderSubscribers struct {
	eventBus eventbus.EventBus
	service  *turnorderservice.TurnOrderService
	logger   *slog.Logger
}

// NewTurnOrderSubscribers creates a new TurnOrderSubscribers.
func NewTurnOrderSubscribers(bus eventbus.EventBus, service *turnorderservice.TurnOrderService, logger *slog.Logger) *TurnOrderSubscribers {
	return &TurnOrderSubscribers{
		eventBus: bus,
		service:  service,
		logger:   logger,
	}
}

// SubscribeToChanges subscribes to participant table changes.
func (s *TurnOrderSubscribers) SubscribeToChanges(ctx context.Context) error {
	topic := eventbus.ChangeTopic(eventbus.TableParticipants)
	if err := s.eventBus.Subscribe(ctx, topic, s.handleChange); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

func (s *TurnOrderSubscribers) handleChange(ctx context.Context, msg *message.Message) error {
	notification, err := eventbus.ParseChangeNotification(msg)
	if err != nil {
		s.logger.WarnContext(ctx, "Dropping malformed change notification", slog.Any("error", err))
		return nil
	}

	// Without a session scope there is nothing to recompute.
	if notification.SessionID == "" {
		return nil
	}
	sessionID, err := shared.ParseSessionID(notification.SessionID)
	if err != nil {
		s.logger.WarnContext(ctx, "Dropping notification with bad session id",
			slog.String("session_id", notification.SessionID),
		)
		return nil
	}

	s.service.NotifyChanged(sessionID)
	return nil
}
