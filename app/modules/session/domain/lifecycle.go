package sessiondomain

import "errors"

// Status is a session's lifecycle state.
type Status string

const (
	StatusLobby           Status = "LOBBY"
	StatusInGame          Status = "IN_GAME"
	StatusInRound         Status = "IN_ROUND"
	StatusResolvingCombat Status = "RESOLVING_COMBAT"
	StatusResolvingShop   Status = "RESOLVING_SHOP"
	StatusEnded           Status = "ENDED"

	// StatusFinished is a legacy spelling of ENDED still present in old
	// rows. Treated as the same display state.
	StatusFinished Status = "FINISHED"
)

// Phase names the in-round game phase. Owned by the moderator flow; the
// directory only surfaces it.
type Phase string

const (
	PhaseGathering Phase = "gathering"
	PhaseCouncil   Phase = "council"
	PhaseVenture   Phase = "venture"
	PhaseDuel      Phase = "duel"
	PhaseMarket    Phase = "market"
)

// ErrIllegalTransition indicates a lifecycle transition outside the
// state machine.
var ErrIllegalTransition = errors.New("illegal session transition")

var transitions = map[Status][]Status{
	StatusLobby:           {StatusInGame, StatusEnded},
	StatusInGame:          {StatusInRound, StatusEnded},
	StatusInRound:         {StatusResolvingCombat, StatusResolvingShop, StatusEnded},
	StatusResolvingCombat: {StatusInRound, StatusResolvingShop, StatusEnded},
	StatusResolvingShop:   {StatusInRound, StatusResolvingCombat, StatusEnded},
}

// Normalize folds legacy spellings into their canonical display state.
func Normalize(s Status) Status {
	if s == StatusFinished {
		return StatusEnded
	}
	return s
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return Normalize(s) == StatusEnded
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch Normalize(s) {
	case StatusLobby, StatusInGame, StatusInRound, StatusResolvingCombat, StatusResolvingShop, StatusEnded:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[Normalize(from)] {
		if next == Normalize(to) {
			return true
		}
	}
	return false
}

// Transition validates from → to, returning ErrIllegalTransition otherwise.
func Transition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return ErrIllegalTransition
	}
	if !CanTransition(from, to) {
		return ErrIllegalTransition
	}
	return nil
}
