package sessiondb

import "errors"

// Sentinel errors for the repository layer. These represent
// infrastructure-level conditions callers may want to handle specially
// (not business-domain errors).
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrParticipantNotFound indicates the seat does not exist in the session.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrStaleStatus indicates a guarded status update matched no row,
	// meaning a concurrent writer moved the session first.
	ErrStaleStatus = errors.New("session status changed concurrently")
)
