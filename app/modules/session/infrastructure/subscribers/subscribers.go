package sessionsubscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Hollow-Moon-Club/gloamhall/app/eventbus"
	sessionservice "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/application"
)

// SessionSubscribers feeds session and participant change notifications
// into the directory. The notification itself carries no authoritative
// payload; the directory re-reads the store on its own schedule.
type SessionSubscribers struct {
	eventBus  eventbus.EventBus
	directory *sessionservice.Directory
	logger    *slog.Logger
}

// NewSessionSubscribers creates a new SessionSubscribers.
func NewSessionSubscribers(bus eventbus.EventBus, directory *sessionservice.Directory, logger *slog.Logger) *SessionSubscribers {
	return &SessionSubscribers{
		eventBus:  bus,
		directory: directory,
		logger:    logger,
	}
}

// SubscribeToChanges subscribes to the change topics the directory cares
// about.
func (s *SessionSubscribers) SubscribeToChanges(ctx context.Context) error {
	for _, table := range []string{eventbus.TableSessions, eventbus.TableParticipants} {
		topic := eventbus.ChangeTopic(table)
		if err := s.eventBus.Subscribe(ctx, topic, s.handleChange); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return nil
}

func (s *SessionSubscribers) handleChange(ctx context.Context, msg *message.Message) error {
	notification, err := eventbus.ParseChangeNotification(msg)
	if err != nil {
		// Drop malformed notifications; the periodic refresh covers the gap.
		s.logger.WarnContext(ctx, "Dropping malformed change notification", slog.Any("error", err))
		return nil
	}

	s.logger.DebugContext(ctx, "Directory change notification",
		slog.String("table", notification.Table),
		slog.String("op", notification.Op),
	)
	s.directory.NotifyChanged()
	return nil
}
