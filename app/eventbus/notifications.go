package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Store tables that carry row-change triggers.
const (
	TableSessions     = "sessions"
	TableParticipants = "participants"
	TableDuels        = "duels"
)

// Row operations carried by a change notification. These mirror the
// trigger's TG_OP values.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// StreamChanges is the JetStream stream covering all change topics.
const StreamChanges = "GLOAMHALL_CHANGES"

// ChangeTopic returns the bus topic for a table's change notifications.
func ChangeTopic(table string) string {
	return "changes." + table
}

// Module event topics. Payloads on these topics are announcements, not
// authoritative state; consumers re-read the store.
const (
	TopicTurnOrderUpdated = "turnorder.updated"
	TopicSessionPhase     = "session.phase"
	TopicDuelResolved     = "duel.resolved"
)

// ChangeNotification is the ephemeral "some row in table T matching filter
// F changed" signal. It carries no payload guaranteed to be authoritative;
// consumers must re-read state before any correctness-critical decision.
type ChangeNotification struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	SessionID string `json:"session_id,omitempty"`
}

// Message wraps the notification in a Watermill message for publication.
func (n ChangeNotification) Message() (*message.Message, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change notification: %w", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload), nil
}

// ParseChangeNotification decodes a change notification from a bus message.
func ParseChangeNotification(msg *message.Message) (ChangeNotification, error) {
	var n ChangeNotification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return ChangeNotification{}, fmt.Errorf("failed to unmarshal change notification: %w", err)
	}
	if n.Table == "" {
		return ChangeNotification{}, fmt.Errorf("change notification missing table")
	}
	return n, nil
}
