package dueldb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	dueldomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Duel is a two-party sub-session. One decision slot per side, absent
// until that side submits. Immutable after leaving ACTIVE.
type Duel struct {
	bun.BaseModel `bun:"table:duels,alias:d"`

	ID        shared.DuelID     `bun:"id,pk,type:uuid"`
	SessionID shared.SessionID  `bun:"session_id,type:uuid,notnull"`
	Status    dueldomain.Status `bun:"status,notnull,default:'ACTIVE'"`

	ChallengerNumber shared.ParticipantNumber `bun:"challenger_number,notnull"`
	DefenderNumber   shared.ParticipantNumber `bun:"defender_number,notnull"`

	ChallengerDecision string `bun:"challenger_decision,nullzero"`
	DefenderDecision   string `bun:"defender_decision,nullzero"`

	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	ResolvedAt *time.Time `bun:"resolved_at,nullzero"`
}

var _ bun.BeforeInsertHook = (*Duel)(nil)

func (d *Duel) BeforeInsert(ctx context.Context, _ *bun.InsertQuery) error {
	if uuid.UUID(d.ID) == uuid.Nil {
		d.ID = shared.DuelID(uuid.New())
	}
	if d.Status == "" {
		d.Status = dueldomain.StatusActive
	}
	return nil
}

// DecisionFor returns the stored decision for a side, empty if absent.
func (d *Duel) DecisionFor(side dueldomain.Side) string {
	if side == dueldomain.SideChallenger {
		return d.ChallengerDecision
	}
	return d.DefenderDecision
}
