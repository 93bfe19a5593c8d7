package sessionservice

import (
	"context"

	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	sessiondb "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/infrastructure/repositories"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// Service owns session lifecycle and seat management. All lifecycle moves
// go through TransitionPhase so the state machine is enforced in one place.
type Service interface {
	CreateSession(ctx context.Context, name string) (*sessiondb.Session, error)
	GetSession(ctx context.Context, id shared.SessionID) (*sessiondb.Session, error)
	JoinSession(ctx context.Context, id shared.SessionID, accountID, name string) (*sessiondb.Participant, error)
	SetRoundInputs(ctx context.Context, id shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error
	TransitionPhase(ctx context.Context, id shared.SessionID, to sessiondomain.Status, phase sessiondomain.Phase) (*sessiondb.Session, error)
	SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error
}
