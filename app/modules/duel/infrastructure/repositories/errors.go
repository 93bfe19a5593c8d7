package dueldb

import "errors"

// Sentinel errors for the repository layer.
var (
	// ErrNotFound indicates the requested duel does not exist.
	ErrNotFound = errors.New("duel not found")

	// ErrNotActive indicates a guarded write matched a row that exists but
	// is no longer ACTIVE.
	ErrNotActive = errors.New("duel not active")
)
