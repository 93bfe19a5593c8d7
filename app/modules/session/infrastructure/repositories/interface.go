package sessiondb

import (
	"context"
	"time"

	sessiondomain "github.com/Hollow-Moon-Club/gloamhall/app/modules/session/domain"
	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

// SessionDB handles database operations for sessions and their seats.
type SessionDB interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id shared.SessionID) (*Session, error)

	// UpdateStatus performs a guarded transition: the row is updated only
	// while it still holds the expected current status. ErrStaleStatus is
	// returned when a concurrent writer got there first.
	UpdateStatus(ctx context.Context, id shared.SessionID, from, to sessiondomain.Status, round shared.RoundNumber, phase sessiondomain.Phase) (*Session, error)

	SetActiveDuel(ctx context.Context, id shared.SessionID, duelID *shared.DuelID) error

	AddParticipant(ctx context.Context, participant *Participant) error
	GetParticipants(ctx context.Context, sessionID shared.SessionID) ([]Participant, error)
	SetRoundInputs(ctx context.Context, sessionID shared.SessionID, number shared.ParticipantNumber, desired *shared.Slot, priority *int) error

	// ActiveSummaries feeds the live session directory.
	ActiveSummaries(ctx context.Context) ([]SessionSummary, error)

	// EndedBefore and Archive support retention of ended sessions.
	EndedBefore(ctx context.Context, cutoff time.Time) ([]Session, error)
	Archive(ctx context.Context, id shared.SessionID) error
}
