package coordinator

import "errors"

// Precondition failures are returned as values to the caller and never
// mutate shared state. None of them is fatal; a rejected action simply
// leaves the store untouched.
var (
	// ErrNotFree rejects startWash when the machine is not free.
	ErrNotFree = errors.New("machine is not free")

	// ErrNotHolder rejects finishWash from anyone but the current holder.
	ErrNotHolder = errors.New("caller does not hold the machine")

	// ErrNotEligible rejects acceptHandoff from anyone but the designated
	// candidate, and leaveQueue against someone else's entry.
	ErrNotEligible = errors.New("caller is not the designated candidate")

	// ErrWrongPhase rejects an operation whose phase precondition fails.
	ErrWrongPhase = errors.New("operation not valid in current phase")

	// ErrStaleWrite is returned by the store when a conditional commit
	// loses a race: the state changed between the snapshot the decision
	// was computed from and the write. The caller re-reads and retries
	// or surfaces the conflict; the coordinator never retries itself.
	ErrStaleWrite = errors.New("state changed since snapshot, write rejected")
)
