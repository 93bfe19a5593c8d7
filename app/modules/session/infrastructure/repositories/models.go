package sessiondb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Session represents one running game instance.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID           shared.SessionID     `bun:"id,pk,type:uuid"`
	Name         string               `bun:"name,notnull"`
	Status       sessiondomain.Status `bun:"status,notnull,default:'LOBBY'"`
	CurrentRound shared.RoundNumber   `bun:"current_round,notnull,default:0"`
	CurrentPhase sessiondomain.Phase  `bun:"current_phase,nullzero"`
	ActiveDuelID *shared.DuelID       `bun:"active_duel_id,type:uuid,nullzero"`

	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	EndedAt   *time.Time `bun:"ended_at,nullzero"`
}

var _ bun.BeforeInsertHook = (*Session)(nil)

func (s *Session) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(s.ID) == uuid.Nil {
		s.ID = shared.SessionID(uuid.New())
	}
	return nil
}

// Participant is a seat in a session. AccountID is empty for anonymous
// seats; the participant number is the stable in-session address either way.
type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID        int64                    `bun:"id,pk,autoincrement"`
	SessionID shared.SessionID         `bun:"session_id,type:uuid,notnull"`
	Number    shared.ParticipantNumber `bun:"participant_number,notnull"`
	AccountID string                   `bun:"account_id,nullzero"`
	Name      string                   `bun:"name,notnull"`

	// Per-round turn inputs, overwritten at the start of each round.
	DesiredSlot  *shared.Slot `bun:"desired_slot,nullzero"`
	PriorityRank *int         `bun:"priority_rank,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ArchivedSession is the retention snapshot of an ended session.
type ArchivedSession struct {
	bun.BaseModel `bun:"table:archived_sessions,alias:arch"`

	ID               shared.SessionID   `bun:"id,pk,type:uuid"`
	Name             string             `bun:"name,notnull"`
	FinalRound       shared.RoundNumber `bun:"final_round,notnull"`
	ParticipantCount int                `bun:"participant_count,notnull"`
	EndedAt          *time.Time         `bun:"ended_at,nullzero"`
	ArchivedAt       time.Time          `bun:"archived_at,nullzero,notnull,default:current_timestamp"`
}

// SessionSummary is the directory's read-mostly projection of an active
// session.
type SessionSummary struct {
	ID               shared.SessionID     `bun:"id"`
	Name             string               `bun:"name"`
	Status           sessiondomain.Status `bun:"status"`
	CurrentRound     shared.RoundNumber   `bun:"current_round"`
	ParticipantCount int                  `bun:"participant_count"`
}
