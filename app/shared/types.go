package shared

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// SessionID identifies one running game instance.
type SessionID uuid.UUID

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the id in its canonical uuid string form, which is
// also what the JSON encoder emits.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = SessionID(parsed)
	return nil
}

func (id SessionID) Value() (driver.Value, error) {
	return uuid.UUID(id).Value()
}

func (id *SessionID) Scan(src any) error {
	return (*uuid.UUID)(id).Scan(src)
}

// ParseSessionID parses a session identifier from its string form.
func ParseSessionID(s string) (SessionID, error) {
	id, err := uuid.Parse(s)
	return SessionID(id), err
}

// DuelID identifies a two-party sub-session within a session.
type DuelID uuid.UUID

func (id DuelID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the id in its canonical uuid string form.
func (id DuelID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *DuelID) UnmarshalText(text []byte) error {
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = DuelID(parsed)
	return nil
}

func (id DuelID) Value() (driver.Value, error) {
	return uuid.UUID(id).Value()
}

func (id *DuelID) Scan(src any) error {
	return (*uuid.UUID)(id).Scan(src)
}

// ParseDuelID parses a duel identifier from its string form.
func ParseDuelID(s string) (DuelID, error) {
	id, err := uuid.Parse(s)
	return DuelID(id), err
}

// ParticipantNumber is the stable small integer addressing a seat in a
// session. It is distinct from account identity; anonymous participants
// have one too.
type ParticipantNumber int

// RoundNumber counts rounds within a session, starting at 1.
type RoundNumber int

// Slot is a participant's position in the turn/attack order for one round.
type Slot int
