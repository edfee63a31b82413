package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Point errors
	ErrInvalidOutcome = errors.New("invalid point outcome")

	// Match errors
	ErrMatchNotFound = errors.New("match not found")
	ErrNoActiveMatch = errors.New("no active match")
	ErrMatchEnded    = errors.New("match already ended")

	// Sync errors
	ErrRemoteDisabled = errors.New("remote store not configured")
	ErrQueueFull      = errors.New("sync queue full, remote job dropped")
	ErrEngineClosed   = errors.New("sync engine closed")
)
