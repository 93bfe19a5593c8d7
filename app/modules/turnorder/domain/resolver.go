package turnorderdomain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Hollow-Moon-Club/gloamhall/app/shared"
)

var (
	// ErrNoParticipants indicates an empty round.
	ErrNoParticipants = errors.New("no participants")

	// ErrNotPermutation indicates the priority sequence is not a
	// permutation of the participant numbers 1..N.
	ErrNotPermutation = errors.New("priority sequence is not a permutation")

	// ErrDesiredSlotOutOfRange indicates a desired slot outside 1..N.
	ErrDesiredSlotOutOfRange = errors.New("desired slot out of range")
)

// Assignment maps each participant number to its final slot for one round.
// A valid assignment is a bijection onto {1..N}.
type Assignment map[shared.ParticipantNumber]shared.Slot

// ResolveSlots converts per-participant priority and desired placement into
// a conflict-free slot assignment. Participants are processed strictly in
// priority order (highest first); each starts at its desired slot and
// probes forward, wrapping from N back to 1, until an unoccupied slot is
// found. Missing desired slots default to 1.
//
// The result is deterministic and total for valid input: every participant
// probes at most N slots, and there are always at least as many free slots
// as remaining participants.
func ResolveSlots(priority []shared.ParticipantNumber, desired map[shared.ParticipantNumber]shared.Slot, n int) (Assignment, error) {
	if n < 1 {
		return nil, ErrNoParticipants
	}
	if len(priority) != n {
		return nil, fmt.Errorf("%w: got %d entries for %d participants", ErrNotPermutation, len(priority), n)
	}

	seen := make(map[shared.ParticipantNumber]bool, n)
	for _, p := range priority {
		if p < 1 || int(p) > n {
			return nil, fmt.Errorf("%w: participant %d outside 1..%d", ErrNotPermutation, p, n)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: participant %d listed twice", ErrNotPermutation, p)
		}
		seen[p] = true
	}

	occupied := make([]bool, n+1)
	assignment := make(Assignment, n)

	for _, p := range priority {
		start := shared.Slot(1)
		if want, ok := desired[p]; ok {
			if want < 1 || int(want) > n {
				return nil, fmt.Errorf("%w: participant %d wants slot %d of %d", ErrDesiredSlotOutOfRange, p, want, n)
			}
			start = want
		}

		slot := start
		for probes := 0; probes < n; probes++ {
			if !occupied[slot] {
				break
			}
			slot++
			if int(slot) > n {
				slot = 1
			}
		}

		occupied[slot] = true
		assignment[p] = slot
	}

	return assignment, nil
}

// DeriveActionOrder returns the participants of an assignment sorted
// ascending by final slot. Ties cannot occur because slots are a bijection.
func DeriveActionOrder(assignment Assignment) []shared.ParticipantNumber {
	order := make([]shared.ParticipantNumber, 0, len(assignment))
	for p := range assignment {
		order = append(order, p)
	}
	sort.Slice(order, func(i, j int) bool {
		return assignment[order[i]] < assignment[order[j]]
	})
	return order
}
