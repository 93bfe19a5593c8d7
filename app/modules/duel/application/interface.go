package duelservice

import (
	"context"

	dueldb "github.com/Hollow-Moon-Club/gloamhall/app/modules/duel/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Service guards duel decision intake and lifecycle.
type Service interface {
	CreateDuel(ctx context.Context, sessionID shared.SessionID, challenger, defender shared.ParticipantNumber) (*dueldb.Duel, error)
	GetDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error)
	SubmitDecision(ctx context.Context, duelID shared.DuelID, participant shared.ParticipantNumber, decision string) (*DecisionResult, error)
	ResolveDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error)
	CancelDuel(ctx context.Context, duelID shared.DuelID) (*dueldb.Duel, error)
}

// DecisionResult echoes an accepted decision back to the caller.
type DecisionResult struct {
	ParticipantNumber shared.ParticipantNumber `json:"participantNumber"`
	Decision          string                   `json:"decision"`
}

// SessionAttacher is the slice of the session module the duel module
// needs: recording which duel is the session's active sub-session.
type SessionAttacher interface {
	SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error
}
