package gamelogdb

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Visibility is the audience tier an event is tagged with. The log only
// tags records; enforcement belongs to the reading surface.
type Visibility string

const (
	VisibilityModerator Visibility = "moderator"
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
)

// Event is one immutable log record. No update or delete path exists in
// this subsystem; ordering within a session is by creation time, best
// effort only.
type Event struct {
	bun.BaseModel `bun:"table:game_events,alias:e"`

	ID         int64              `bun:"id,pk,autoincrement"`
	SessionID  shared.SessionID   `bun:"session_id,type:uuid,notnull"`
	Round      shared.RoundNumber `bun:"round,notnull,default:0"`
	Phase      string             `bun:"phase,nullzero"`
	Visibility Visibility         `bun:"visibility,notnull,default:'public'"`

	EventType         string                    `bun:"event_type,notnull"`
	ParticipantNumber *shared.ParticipantNumber `bun:"participant_number,nullzero"`
	Message           string                    `bun:"message,nullzero"`
	Payload           json.RawMessage           `bun:"payload,type:jsonb,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Filter narrows event reads. Nil fields match everything.
type Filter struct {
	SessionID  shared.SessionID
	Round      *shared.RoundNumber
	Phase      *string
	Visibility *Visibility
	Limit      int
}
