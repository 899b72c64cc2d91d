package storage

import (
	"context"
	"errors"

	"github.com/waschgehtab/washd/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store persists the shared machine state. Implementations must apply
// CommitTransition atomically: the status write, the version precondition
// check and the paired queue mutation either all happen or none do.
// Interface kept minimal, allows swapping implementations.
type Store interface {
	// Snapshot reads the status record and the full queue as of one
	// consistent moment.
	Snapshot(ctx context.Context) (models.Snapshot, error)

	// CommitTransition applies the status write iff the persisted status
	// is still at expectedVersion, together with at most one queue
	// mutation. A lost race returns coordinator.ErrStaleWrite. When the
	// mutation appends an entry, the returned entry carries the assigned
	// ID and sequence.
	CommitTransition(ctx context.Context, expectedVersion int64, status models.MachineStatus, mut models.QueueMutation) (*models.QueueEntry, error)

	SaveProfile(ctx context.Context, p models.UserProfile) error
	GetProfile(ctx context.Context, userID string) (models.UserProfile, error)

	// Subscribe returns a stream of snapshots, one per committed
	// transition, plus a cancel func. Slow subscribers miss updates
	// rather than blocking commits.
	Subscribe() (<-chan models.Snapshot, func())

	Close() error
}
