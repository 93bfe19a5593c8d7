package dueldomain

import "github.com/Hollow-Moon-Club/gloamhall/app/shared"

// Status is a duel's lifecycle state. A duel leaves ACTIVE exactly once
// and is immutable afterwards.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusResolved  Status = "RESOLVED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether s permits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Side names one of the two designated seats of a duel.
type Side string

const (
	SideChallenger Side = "challenger"
	SideDefender   Side = "defender"
)

// SideFor matches a submitting participant number against the duel's two
// designated sides. The second return is false when the submitter is
// neither side.
func SideFor(challenger, defender, submitter shared.ParticipantNumber) (Side, bool) {
	switch submitter {
	case challenger:
		return SideChallenger, true
	case defender:
		return SideDefender, true
	}
	return "", false
}

// Resolvable reports whether both sides have a decision on record, the
// precondition for transitioning ACTIVE → RESOLVED.
func Resolvable(challengerDecision, defenderDecision string) bool {
	return challengerDecision != "" && defenderDecision != ""
}
