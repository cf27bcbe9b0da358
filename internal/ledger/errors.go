package ledger

import "errors"

var (
	// ErrNotFound is returned when no pending action exists with the given ID.
	ErrNotFound = errors.New("pending action not found")

	// ErrAlreadyResolved is returned when a transition's compare-and-swap
	// misses: someone else already decided this entry. Callers treat it as
	// a concurrency conflict, not a bug.
	ErrAlreadyResolved = errors.New("pending action already resolved")

	// ErrIllegalTransition is returned when a requested transition is not an
	// edge of the status state machine.
	ErrIllegalTransition = errors.New("illegal status transition")
)
